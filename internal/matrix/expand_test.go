package matrix

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	x86  = PlatformSpec{OS: "linux", Triple: "x86_64"}
	i686 = PlatformSpec{OS: "linux", Triple: "i686"}
)

func TestExpand_VersionMajorOrder(t *testing.T) {
	jobs, err := Expand([]VersionSpec{"1.41.0", "1.60.0"}, []PlatformSpec{x86, i686})
	require.NoError(t, err)

	want := []JobSpec{
		{Index: 0, Version: "1.41.0", Platform: x86},
		{Index: 1, Version: "1.41.0", Platform: i686},
		{Index: 2, Version: "1.60.0", Platform: x86},
		{Index: 3, Version: "1.60.0", Platform: i686},
	}
	if diff := cmp.Diff(want, jobs); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_EveryPairExactlyOnce(t *testing.T) {
	versions := []VersionSpec{"1.41.0", "1.52.1", "1.60.0"}
	platforms := []PlatformSpec{
		x86,
		i686,
		{OS: "macos", Triple: "aarch64-apple-darwin"},
		{OS: "windows", Triple: "x86_64-pc-windows-msvc"},
	}

	jobs, err := Expand(versions, platforms)
	require.NoError(t, err)
	require.Len(t, jobs, len(versions)*len(platforms))

	type pair struct {
		v VersionSpec
		p PlatformSpec
	}
	seen := make(map[pair]int)
	for i, j := range jobs {
		assert.Equal(t, i, j.Index)
		seen[pair{j.Version, j.Platform}]++
	}
	for _, v := range versions {
		for _, p := range platforms {
			assert.Equal(t, 1, seen[pair{v, p}], "pair %s x %s", v, p)
		}
	}
}

func TestExpand_DuplicateVersionsKept(t *testing.T) {
	jobs, err := Expand([]VersionSpec{"1.60.0", "1.60.0"}, []PlatformSpec{x86})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, jobs[0].ID(), jobs[1].ID())
	assert.NotEqual(t, jobs[0].Key(), jobs[1].Key())
}

func TestExpand_Empty(t *testing.T) {
	tests := []struct {
		name      string
		versions  []VersionSpec
		platforms []PlatformSpec
	}{
		{name: "no versions", platforms: []PlatformSpec{x86}},
		{name: "no platforms", versions: []VersionSpec{"1.60.0"}},
		{name: "neither"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := Expand(tt.versions, tt.platforms)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEmptyMatrix))
			assert.Empty(t, jobs)

			var emptyErr *EmptyMatrixError
			require.ErrorAs(t, err, &emptyErr)
			assert.Equal(t, len(tt.versions), emptyErr.Versions)
			assert.Equal(t, len(tt.platforms), emptyErr.Platforms)
		})
	}
}

func TestJobSpec_Key(t *testing.T) {
	j := JobSpec{Index: 3, Version: "nightly-2024-01-01", Platform: PlatformSpec{OS: "linux", Triple: "x86_64/weird target"}}
	assert.Equal(t, "03-nightly-2024-01-01-x86_64_weird_target", j.Key())
	assert.Equal(t, "nightly-2024-01-01/x86_64/weird target", j.ID())
}
