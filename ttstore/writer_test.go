package ttstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastalign-go/paralign/perr"
	"github.com/fastalign-go/paralign/ttable"
	"github.com/fastalign-go/paralign/walign"
)

// TestWriterRoundTripsThroughRealShardFiles writes ascending-src rows with
// a real TTableWriter, then loads the resulting index/entry files back
// with Load (the real mmap path, not a fakeReaderAt) and checks every row
// is queryable.
func TestWriterRoundTripsThroughRealShardFiles(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.0")
	entryPath := filepath.Join(dir, "entry.0")

	w, err := NewWriter("file:"+indexPath, "file:"+entryPath)
	require.NoError(t, err)

	require.NoError(t, w.Write(1, ttable.New([]walign.WordId{10, 20}, []walign.Prob{0.25, 0.75})))
	require.NoError(t, w.Write(3, ttable.New([]walign.WordId{5}, []walign.Prob{1.0})))
	require.NoError(t, w.WriteIndex())
	require.NoError(t, w.Close())

	p, err := Load(indexPath, entryPath)
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, walign.Prob(0.25), p.Query(1, 10))
	require.Equal(t, walign.Prob(0.75), p.Query(1, 20))
	require.Equal(t, walign.Prob(1.0), p.Query(3, 5))
	require.Equal(t, walign.KDefaultProbability, p.Query(1, 999))
	require.Equal(t, walign.KDefaultProbability, p.Query(2, 10))
}

// TestWriterRejectsOutOfOrderSrc covers the ascending-src contract: a
// second Write with src <= the previous one is an InvariantViolation,
// never silently accepted.
func TestWriterRejectsOutOfOrderSrc(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(
		"file:"+filepath.Join(dir, "index.0"),
		"file:"+filepath.Join(dir, "entry.0"),
	)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(5, ttable.New([]walign.WordId{1}, []walign.Prob{1.0})))

	err = w.Write(5, ttable.New([]walign.WordId{1}, []walign.Prob{1.0}))
	require.Error(t, err)
	var iv *perr.InvariantViolation
	require.True(t, errors.As(err, &iv))

	err = w.Write(4, ttable.New([]walign.WordId{1}, []walign.Prob{1.0}))
	require.Error(t, err)
	require.True(t, errors.As(err, &iv))
}

// TestWriterEmptyShardIsStillValidIndex: WriteIndex must produce a valid
// (empty) shard even when no rows were ever written.
func TestWriterEmptyShardIsStillValidIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.0")
	entryPath := filepath.Join(dir, "entry.0")

	w, err := NewWriter("file:"+indexPath, "file:"+entryPath)
	require.NoError(t, err)
	require.NoError(t, w.WriteIndex())
	require.NoError(t, w.Close())

	p, err := Load(indexPath, entryPath)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, walign.KDefaultProbability, p.Query(1, 1))
}

// TestNewWriterRejectsUnrecognizedScheme covers writer.go's scheme-prefix
// validation: an address with neither "file:" nor "hdfs:" is a
// ConfigError, never assumed local.
func TestNewWriterRejectsUnrecognizedScheme(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(filepath.Join(dir, "index.0"), filepath.Join(dir, "entry.0"))
	require.Error(t, err)
	var ce *perr.ConfigError
	require.True(t, errors.As(err, &ce))
}

// TestNewWriterAcceptsHdfsScheme covers the hdfs: prefix being recognized
// (resolved through the same local path today, per writer.go's doc
// comment), not merely the file: prefix.
func TestNewWriterAcceptsHdfsScheme(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.0")
	entryPath := filepath.Join(dir, "entry.0")

	w, err := NewWriter("hdfs:"+indexPath, "hdfs:"+entryPath)
	require.NoError(t, err)
	require.NoError(t, w.WriteIndex())
	require.NoError(t, w.Close())
}

// TestWriterCloseIsIdempotent covers Close being safe to call more than
// once.
func TestWriterCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(
		"file:"+filepath.Join(dir, "index.0"),
		"file:"+filepath.Join(dir, "entry.0"),
	)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
