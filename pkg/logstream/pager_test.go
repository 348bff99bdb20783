package logstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAll_ReconstructsCappedPages(t *testing.T) {
	for _, k := range []int{1, 3, 7, 10, 50} {
		src := &fakeSource{logs: numbered(10), pageCap: k}

		page, err := FetchAll(context.Background(), src, "j1", 0, 0)
		require.NoError(t, err)
		require.Len(t, page.Lines, 10, "cap %d", k)
		for i, l := range page.Lines {
			assert.Equal(t, i+1, l.Line, "cap %d", k)
		}
		assert.Equal(t, 10, page.Next)
		assert.False(t, page.Capped)

		// Every non-empty page advances the offset, then one empty page ends it.
		wantCalls := (10+k-1)/k + 1
		assert.Equal(t, wantCalls, src.logCalls, "cap %d", k)
	}
}

func TestFetchAll_StartOffset(t *testing.T) {
	src := &fakeSource{logs: numbered(10), pageCap: 4}

	page, err := FetchAll(context.Background(), src, "j1", 6, 0)
	require.NoError(t, err)
	require.Len(t, page.Lines, 4)
	assert.Equal(t, "line 7", page.Lines[0].Message)
	assert.Equal(t, 10, page.Next)
	assert.Equal(t, []int{6, 10}, src.starts)
}

func TestFetchAll_StopsAtSentinel(t *testing.T) {
	src := &fakeSource{logs: append(numbered(3), Sentinel), pageCap: 2}

	page, err := FetchAll(context.Background(), src, "j1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, page.Lines, 4)
	assert.Equal(t, 2, src.logCalls)
}

func TestFetchAll_PageCap(t *testing.T) {
	src := &fakeSource{logs: numbered(10), pageCap: 3}

	page, err := FetchAll(context.Background(), src, "j1", 0, 2)
	require.NoError(t, err)
	assert.True(t, page.Capped)
	assert.Len(t, page.Lines, 6)
	assert.Equal(t, 6, page.Next)
}

func TestLast(t *testing.T) {
	src := &fakeSource{logs: numbered(5)}
	page, err := FetchAll(context.Background(), src, "j1", 0, 0)
	require.NoError(t, err)

	assert.Len(t, Last(page.Lines, 0), 5)
	assert.Len(t, Last(page.Lines, 9), 5)
	got := Last(page.Lines, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "line 4", got[0].Message)
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel("PSEOF"))
	assert.True(t, IsSentinel("PSEOF\n"))
	assert.False(t, IsSentinel("PSEOF later"))
	assert.False(t, IsSentinel(""))
}

func TestResumeOffset(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		haveTotal bool
		lastJob   string
		jobID     string
		tail      int
		want      int
	}{
		{name: "same job", total: 100, haveTotal: true, lastJob: "abc", jobID: "abc", tail: 20, want: 80},
		{name: "other job", total: 100, haveTotal: true, lastJob: "abc", jobID: "xyz", tail: 20, want: 0},
		{name: "all lines", total: 100, haveTotal: true, lastJob: "abc", jobID: "abc", tail: 0, want: 0},
		{name: "tail exceeds total", total: 5, haveTotal: true, lastJob: "abc", jobID: "abc", tail: 20, want: 0},
		{name: "no total", lastJob: "abc", jobID: "abc", tail: 20, want: 0},
		{name: "no last job", total: 100, haveTotal: true, jobID: "abc", tail: 20, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResumeOffset(tt.total, tt.haveTotal, tt.lastJob, tt.jobID, tt.tail))
		})
	}
}

func TestParseTailLines(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{in: 20, want: 20},
		{in: int64(5), want: 5},
		{in: float64(7), want: 7},
		{in: "15", want: 15},
		{in: "all", want: 0},
		{in: "All", want: 0},
		{in: "a", want: 0},
		{in: 0, want: 0},
		{in: "ten", wantErr: true},
		{in: -1, wantErr: true},
		{in: 2.5, wantErr: true},
		{in: nil, wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTailLines(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
