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

package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLoopbackDeliversTransmittedFrame(t *testing.T) {
	lb := NewLoopback(62500)
	a, b := lb.Sides()

	var received []byte
	b.SetCallback(Callback{
		OnFIFOThreshold: func() {},
		OnRXFinished: func(ok bool) {
			require.True(t, ok)
		},
	})
	require.NoError(t, b.AsyncOn())

	require.NoError(t, a.AsyncPrepare([]byte("hello")))
	require.NoError(t, a.AsyncTransmit(false))

	n, err := b.AsyncReadPHYHeader()
	require.NoError(t, err)
	buf := make([]byte, n)
	got, err := b.AsyncReadPayload(buf, 0)
	require.NoError(t, err)
	received = buf[:got]
	assert.Equal(t, "hello", string(received))
}

func TestLoopbackDropsFramesWhenReceiverOff(t *testing.T) {
	lb := NewLoopback(62500)
	a, b := lb.Sides()
	fired := false
	b.SetCallback(Callback{OnRXFinished: func(bool) { fired = true }})

	require.NoError(t, a.AsyncPrepare([]byte("x")))
	require.NoError(t, a.AsyncTransmit(false))
	assert.False(t, fired)
}

func TestMockDriverRecordsExpectedCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockDriver(ctrl)
	m.EXPECT().AsyncOn().Return(nil)
	require.NoError(t, m.AsyncOn())
}
