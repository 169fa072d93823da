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

package nbr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) Addr {
	var a Addr
	a[7] = b
	return a
}

func TestNewFindDelete(t *testing.T) {
	tbl := NewTable(4, 2, false)
	e, err := tbl.New(addr(1), StatusPermanent)
	require.NoError(t, err)
	assert.Equal(t, e, tbl.Find(addr(1)))
	tbl.Delete(e)
	assert.Nil(t, tbl.Find(addr(1)))
}

func TestTentativeCapEnforced(t *testing.T) {
	tbl := NewTable(8, 2, false)
	_, err := tbl.New(addr(1), StatusTentative)
	require.NoError(t, err)
	_, err = tbl.New(addr(2), StatusTentative)
	require.NoError(t, err)
	_, err = tbl.New(addr(3), StatusTentative)
	assert.ErrorIs(t, err, ErrTooManyTentatives)
}

func TestTentativeEvictionOnFull(t *testing.T) {
	tbl := NewTable(8, 1, true)
	old, err := tbl.New(addr(1), StatusTentative)
	require.NoError(t, err)
	old.Tentative.WaitTimerAt = time.Now().Add(-time.Minute)

	_, err = tbl.New(addr(2), StatusTentative)
	require.NoError(t, err)
	assert.Nil(t, tbl.Find(addr(1)), "oldest tentative should have been evicted")
}

func TestTableFullRejectsPermanent(t *testing.T) {
	tbl := NewTable(1, 1, false)
	_, err := tbl.New(addr(1), StatusPermanent)
	require.NoError(t, err)
	_, err = tbl.New(addr(2), StatusPermanent)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestPromotePreservesIndex(t *testing.T) {
	tbl := NewTable(4, 4, false)
	e, err := tbl.New(addr(1), StatusTentative)
	require.NoError(t, err)
	idx := e.Index()
	tbl.Promote(e, Permanent{HasPairwiseKey: true})
	assert.Equal(t, idx, e.Index())
	assert.Equal(t, StatusPermanent, e.Status)
	assert.Equal(t, e, tbl.GetNbr(idx))
}

func TestHeadNextIteration(t *testing.T) {
	tbl := NewTable(4, 4, false)
	a, _ := tbl.New(addr(1), StatusPermanent)
	b, _ := tbl.New(addr(2), StatusPermanent)
	seen := map[*Entry]bool{}
	for e := tbl.Head(); e != nil; e = tbl.Next(e) {
		seen[e] = true
	}
	assert.True(t, seen[a])
	assert.True(t, seen[b])
	assert.Len(t, seen, 2)
}

func TestLockCounterGatesFastPath(t *testing.T) {
	tbl := NewTable(4, 4, false)
	assert.False(t, tbl.Locked())
	tbl.Lock()
	assert.True(t, tbl.Locked())
	tbl.Lock()
	tbl.Unlock()
	assert.True(t, tbl.Locked())
	tbl.Unlock()
	assert.False(t, tbl.Locked())
}
