package parser

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrorKinds(t *testing.T) {
	err := newParseError(FixupMismatch, 0x400, "sector %d", 1)
	assert.Equal(t, "FixupMismatch at offset 0x400: sector 1", err.Error())
	assert.True(t, errors.Is(err, FixupMismatchError))
	assert.False(t, errors.Is(err, TruncatedRecordError))

	wrapped := fmt.Errorf("entry 3: %w", err)
	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, FixupMismatch, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)

	text, _ := CycleDetected.MarshalText()
	assert.Equal(t, "CycleDetected", string(text))
}

func TestDiagnostics(t *testing.T) {
	diagnostics := NewDiagnostics()

	// Added out of order from several goroutines.
	wg := sync.WaitGroup{}
	for i := 9; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := TruncatedRecord
			if i%3 == 0 {
				kind = SignatureMismatch
			}
			diagnostics.Add(int64(i), newParseError(kind, int64(i*1024), "record %d", i))
		}(i)
	}
	wg.Wait()

	// nil is ignored and plain errors become OutOfBoundsOffset.
	diagnostics.Add(20, nil)
	diagnostics.Add(20, errors.New("plain"))

	items := diagnostics.Items()
	require.Equal(t, 11, len(items))
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(i), items[i].RecordIndex)
		assert.Equal(t, int64(i*1024), items[i].Offset)
	}
	assert.Equal(t, OutOfBoundsOffset, items[10].Kind)
	assert.Equal(t, "plain", items[10].Message)

	summary := diagnostics.Summary()
	assert.Equal(t, []string{"SignatureMismatch", "TruncatedRecord",
		"OutOfBoundsOffset"}, summary.Keys())
	count, _ := summary.Get("SignatureMismatch")
	assert.Equal(t, 4, count)
}
