package archive_test

import (
	"bytes"
	"context"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifest() *model.Manifest {
	return &model.Manifest{
		Version:      model.ManifestVersion,
		ID:           "bank-1",
		Name:         "Drums",
		DefaultColor: "#ff0000",
		Pads: []model.PadRecord{
			{ID: "p1", Name: "Kick", Audio: archive.AudioPath("p1"), Image: archive.ImagePath("p1"), EndTimeMs: 1000, Volume: 1},
			{ID: "p2", Name: "Snare", Audio: archive.AudioPath("p2"), EndTimeMs: 500, Volume: 0.5},
		},
	}
}

func rawZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// forgedZip writes stored entries whose headers declare the given uncompressed size.
func forgedZip(t *testing.T, declared uint64, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{archive.ManifestEntry, archive.AudioPath("p1")} {
		content, ok := entries[name]
		if !ok {
			continue
		}

		size := uint64(len(content))
		if name != archive.ManifestEntry || entries["forge"] == name {
			size = declared
		}
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               name,
			Method:             zip.Store,
			CRC32:              crc32.ChecksumIEEE([]byte(content)),
			CompressedSize64:   uint64(len(content)),
			UncompressedSize64: size,
		})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAssembleParse(t *testing.T) {
	metadata := &model.BankMetadata{Password: true, Exportable: false, Transferable: true, Title: "Drums", BankID: "admin-1"}
	assets := []archive.Asset{
		{Path: archive.AudioPath("p1"), Data: []byte("kick")},
		{Path: archive.ImagePath("p1"), Data: []byte("png")},
		{Path: archive.AudioPath("p2"), Data: []byte("snare")},
	}

	data, err := archive.Assemble(manifest(), metadata, assets)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, archive.ManifestEntry, zr.File[0].Name, "manifest is the first entry")

	c, err := archive.Parse(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Drums", c.Manifest().Name)
	assert.Len(t, c.Manifest().Pads, 2)
	assert.Equal(t, "audio/p2.audio", c.Manifest().Pads[1].Audio)

	m, ok := c.Metadata()
	require.True(t, ok)
	assert.Equal(t, metadata, m)

	for _, asset := range assets {
		assert.True(t, c.HasAsset(asset.Path))
		payload, err := c.Asset(context.Background(), asset.Path)
		assert.NoError(t, err)
		assert.Equal(t, asset.Data, payload)
	}
	assert.False(t, c.HasAsset(archive.ImagePath("p2")))
}

func TestAssembleWithoutMetadata(t *testing.T) {
	data, err := archive.Assemble(&model.Manifest{Name: "Empty"}, nil, nil)
	require.NoError(t, err)

	c, err := archive.Parse(context.Background(), data)
	require.NoError(t, err)
	_, ok := c.Metadata()
	assert.False(t, ok)
	assert.NotNil(t, c.Manifest().Pads)
}

func TestAssembleRejectsInvalidPaths(t *testing.T) {
	for _, path := range []string{"bank.json", "audio/p1.wav", "audio/../p1.audio", "images/.image", "other/p1.audio"} {
		_, err := archive.Assemble(manifest(), nil, []archive.Asset{{Path: path, Data: []byte("x")}})
		assert.Error(t, err, path)
	}

	_, err := archive.Assemble(manifest(), nil, []archive.Asset{
		{Path: archive.AudioPath("p1"), Data: []byte("a")},
		{Path: archive.AudioPath("p1"), Data: []byte("b")},
	})
	assert.Error(t, err)
}

func TestParseFormatErrors(t *testing.T) {
	cases := map[string][]byte{
		"not a zip":        []byte("plain text"),
		"missing manifest": rawZip(t, map[string]string{"audio/p1.audio": "x"}),
		"invalid json":     rawZip(t, map[string]string{"bank.json": "{"}),
		"not an object":    rawZip(t, map[string]string{"bank.json": "[]"}),
		"missing name":     rawZip(t, map[string]string{"bank.json": `{"pads":[]}`}),
		"numeric name":     rawZip(t, map[string]string{"bank.json": `{"name":1,"pads":[]}`}),
		"null name":        rawZip(t, map[string]string{"bank.json": `{"name":null,"pads":[]}`}),
		"missing pads":     rawZip(t, map[string]string{"bank.json": `{"name":"x"}`}),
		"object pads":      rawZip(t, map[string]string{"bank.json": `{"name":"x","pads":{}}`}),
		"invalid metadata": rawZip(t, map[string]string{"bank.json": `{"name":"x","pads":[]}`, "metadata.json": "nope"}),
		"oversized manifest": forgedZip(t, 1<<62, map[string]string{
			"bank.json": `{"name":"x","pads":[]}`,
			"forge":     "bank.json",
		}),
		"lying manifest size": forgedZip(t, 4, map[string]string{
			"bank.json": `{"name":"x","pads":[]}`,
			"forge":     "bank.json",
		}),
	}

	for name, data := range cases {
		_, err := archive.Parse(context.Background(), data)

		var ferr *archive.FormatError
		assert.True(t, errors.As(err, &ferr), name)
	}
}

func TestParseMetadataDefaults(t *testing.T) {
	data := rawZip(t, map[string]string{
		"bank.json":     `{"name":"x","pads":[]}`,
		"metadata.json": `{"password":true,"title":"Admin"}`,
	})

	c, err := archive.Parse(context.Background(), data)
	require.NoError(t, err)

	m, ok := c.Metadata()
	require.True(t, ok)
	assert.True(t, m.Password)
	assert.True(t, m.Transferable)
	assert.True(t, m.Exportable)
	assert.Equal(t, "Admin", m.Title)
	assert.False(t, m.DatabaseBacked())
}

func TestAssetNotFound(t *testing.T) {
	data, err := archive.Assemble(manifest(), nil, nil)
	require.NoError(t, err)

	c, err := archive.Parse(context.Background(), data)
	require.NoError(t, err)

	_, err = c.Asset(context.Background(), archive.AudioPath("p1"))
	assert.Equal(t, archive.ErrAssetNotFound, errors.Cause(err))

	_, err = c.Asset(context.Background(), archive.ManifestEntry)
	assert.Equal(t, archive.ErrAssetNotFound, errors.Cause(err), "only asset entries are exposed")
}

func TestAssetCanceled(t *testing.T) {
	data, err := archive.Assemble(manifest(), nil, []archive.Asset{{Path: archive.AudioPath("p1"), Data: []byte("kick")}})
	require.NoError(t, err)

	c, err := archive.Parse(context.Background(), data)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Asset(ctx, archive.AudioPath("p1"))
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

func TestAssetForgedSize(t *testing.T) {
	manifest := `{"name":"x","pads":[{"id":"p1","audio":"audio/p1.audio"}]}`

	for _, declared := range []uint64{1 << 62, archive.MaxEntrySize + 1, 2} {
		data := forgedZip(t, declared, map[string]string{
			archive.ManifestEntry:   manifest,
			archive.AudioPath("p1"): "kick",
		})

		c, err := archive.Parse(context.Background(), data)
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			_, err = c.Asset(context.Background(), archive.AudioPath("p1"))
		})
		assert.Error(t, err, "declared %d", declared)
	}
}

func TestParseCanceled(t *testing.T) {
	data, err := archive.Assemble(manifest(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = archive.Parse(ctx, data)
	assert.Equal(t, context.Canceled, errors.Cause(err))
}
