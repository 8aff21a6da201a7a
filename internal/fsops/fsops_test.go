package fsops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shred-sage/internal/shredder"
)

type staticSpawner struct{ exit shredder.Exit }

func (s staticSpawner) Spawn(context.Context, *shredder.Plan, func(string)) (shredder.Exit, error) {
	return s.exit, nil
}

func TestExternalShredderReturnsOriginals(t *testing.T) {
	s := shredder.New(shredder.DefaultConfig(), shredder.WithSpawner(staticSpawner{}))
	var ext Shredder = ExternalShredder{S: s}

	files := []string{"/spool/a", "/spool/b"}
	got, err := ext.ShredFiles(context.Background(), files, nil)
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestExternalShredderUtilityError(t *testing.T) {
	s := shredder.New(shredder.DefaultConfig(), shredder.WithSpawner(staticSpawner{exit: shredder.Exit{Code: 1}}))

	_, err := ExternalShredder{S: s}.ShredFiles(context.Background(), []string{"/spool/a"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, shredder.ExitCode(err))
}

func TestFakeShredderRecords(t *testing.T) {
	fake := &FakeShredder{Events: []shredder.Progress{{Action: shredder.Overwriting, Fraction: 1}}}

	var events int
	_, err := fake.ShredFiles(context.Background(), []string{"a", "b"}, func(shredder.Progress) { events++ })
	require.NoError(t, err)
	_, err = fake.ShredFiles(context.Background(), []string{"c"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.CallCount())
	assert.Equal(t, []string{"a", "b", "c"}, fake.Files())
	assert.Equal(t, 1, events)

	fake.Err = errors.New("boom")
	_, err = fake.ShredFiles(context.Background(), []string{"d"}, nil)
	assert.Error(t, err)
}
