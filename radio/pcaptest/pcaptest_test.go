/*
Copyright (c) The CSL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pcaptest

import (
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	"github.com/csl-wsn/csl/radio"
)


func writeFixture(t *testing.T, frames [][]byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "csl-*.pcap")
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(256, layers.LinkTypeIEEE802_15_4))
	for _, frame := range frames {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(0, 0), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return f.Name()
}

func TestOpenReplaysFramesInOrder(t *testing.T) {
	path := writeFixture(t, [][]byte{{0x01, 0x02}, {0x03, 0x04, 0x05}})
	d, err := Open(path, 62500)
	require.NoError(t, err)
	require.Len(t, d.frames, 2)

	var delivered [][]byte
	d.SetCallback(radio.Callback{
		OnRXFinished: func(ok bool) {
			require.True(t, ok)
			n, err := d.AsyncReadPHYHeader()
			require.NoError(t, err)
			buf := make([]byte, n)
			got, err := d.AsyncReadPayload(buf, 0)
			require.NoError(t, err)
			delivered = append(delivered, append([]byte(nil), buf[:got]...))
		},
	})
	require.NoError(t, d.AsyncOn())
	d.Advance(1000)

	require.Len(t, delivered, 2)
	require.Equal(t, []byte{0x01, 0x02}, delivered[0])
	require.Equal(t, []byte{0x03, 0x04, 0x05}, delivered[1])
}
