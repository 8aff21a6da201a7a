package shredder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFlags = []string{"-v", "--iterations=3", "-u", "-z"}

func TestNewPlanSameDirectory(t *testing.T) {
	plan, err := NewPlan("/usr/bin/shred", testFlags, []string{"./a/x", "./a/y"})
	require.NoError(t, err)

	assert.Equal(t, "a", plan.WorkingDirectory)
	assert.Equal(t, []string{"x", "y"}, plan.FileTokens())
	assert.Equal(t, []string{"-v", "--iterations=3", "-u", "-z", "x", "y"}, plan.Arguments)
	assert.Equal(t, []NameMapping{
		{Original: "./a/x", InProcess: "x"},
		{Original: "./a/y", InProcess: "y"},
	}, plan.DisplayNames)
}

func TestNewPlanCrossDirectory(t *testing.T) {
	plan, err := NewPlan("/usr/bin/shred", testFlags, []string{"./a/x", "./b/y"})
	require.NoError(t, err)

	assert.Empty(t, plan.WorkingDirectory)
	assert.Equal(t, []string{"./a/x", "./b/y"}, plan.FileTokens())
	assert.Equal(t, "/usr/bin/shred -v --iterations=3 -u -z ./a/x ./b/y", plan.CommandLine())
}

func TestNewPlanSingleFile(t *testing.T) {
	plan, err := NewPlan("/usr/bin/shred", testFlags, []string{"/srv/spool/report.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "/srv/spool", plan.WorkingDirectory)
	assert.Equal(t, []string{"report.pdf"}, plan.FileTokens())
}

func TestNewPlanDuplicateFilesCollapse(t *testing.T) {
	plan, err := NewPlan("/usr/bin/shred", testFlags, []string{"/d/x", "/d/y", "/d/x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, plan.FileTokens())
	assert.Len(t, plan.DisplayNames, 3)
	assert.Len(t, plan.Arguments, len(testFlags)+2)
}

func TestNewPlanFileNamedLikeFlag(t *testing.T) {
	// A file called "-u" must not merge with the -u flag or be read as one
	plan, err := NewPlan("/usr/bin/shred", testFlags, []string{"/d/-u", "/d/-z"})
	require.NoError(t, err)

	assert.Equal(t, []string{"./-u", "./-z"}, plan.FileTokens())
	assert.Equal(t, testFlags, plan.Arguments[:len(testFlags)])
}

func TestNewPlanDoesNotMutateFlags(t *testing.T) {
	flags := append(make([]string, 0, 16), testFlags...)
	_, err := NewPlan("/usr/bin/shred", flags, []string{"/d/a"})
	require.NoError(t, err)
	_, err = NewPlan("/usr/bin/shred", flags, []string{"/d/b"})
	require.NoError(t, err)

	assert.Equal(t, testFlags, flags)
}

func TestNewPlanInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  error
	}{
		{"nil", nil, ErrNoFiles},
		{"empty", []string{}, ErrNoFiles},
		{"empty path", []string{"/d/a", ""}, ErrEmptyPath},
		{"blank path", []string{"   "}, ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan("/usr/bin/shred", testFlags, tt.files)
			assert.Nil(t, plan)
			require.Error(t, err)
			assert.True(t, IsInputError(err))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
