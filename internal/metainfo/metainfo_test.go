package metainfo

import (
	"crypto/sha1" // nolint: gosec
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bstr(s string) string {
	return fmt.Sprintf("%d:%s", len(s), s)
}

func singleFileInfo() string {
	return "d" +
		bstr("length") + "i12e" +
		bstr("name") + bstr("test.txt") +
		bstr("piece length") + "i16384e" +
		bstr("pieces") + bstr(strings.Repeat("a", 20)) +
		"e"
}

func multiFileInfo() string {
	return "d" +
		bstr("files") + "l" +
		"d" + bstr("length") + "i10e" + bstr("path") + "l" + bstr("a.txt") + "ee" +
		"d" + bstr("length") + "i5e" + bstr("path") + "l" + bstr("dir") + bstr("b.txt") + "ee" +
		"e" +
		bstr("name") + bstr("test") +
		bstr("piece length") + "i16384e" +
		bstr("pieces") + bstr(strings.Repeat("a", 20)) +
		"e"
}

func torrent(announce, info string) string {
	return "d" + bstr("announce") + bstr(announce) + bstr("info") + info + "e"
}

func TestSingleFileTorrent(t *testing.T) {
	info := singleFileInfo()
	mi, err := New(strings.NewReader(torrent("http://tracker.example/announce", info)))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "http://tracker.example/announce", mi.Announce)
	assert.Equal(t, "test.txt", mi.Info.Name)
	assert.Equal(t, int64(12), mi.Info.TotalLength)
	assert.Equal(t, uint32(1), mi.Info.NumPieces)
	assert.False(t, mi.Info.MultiFile())
	assert.Equal(t, sha1.Sum([]byte(info)), mi.Info.Hash) // nolint: gosec
}

func TestMultiFileTorrent(t *testing.T) {
	mi, err := New(strings.NewReader(torrent("https://tracker.example/announce", multiFileInfo())))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(15), mi.Info.TotalLength)
	assert.True(t, mi.Info.MultiFile())
	assert.Len(t, mi.Info.Files, 2)
}

func TestUnsupportedAnnounce(t *testing.T) {
	_, err := New(strings.NewReader(torrent("udp://tracker.example:1337", singleFileInfo())))
	assert.Error(t, err)
}

func TestMissingInfoDict(t *testing.T) {
	_, err := New(strings.NewReader("d" + bstr("announce") + bstr("http://tracker.example/announce") + "e"))
	assert.Error(t, err)
}

func TestInvalidPieces(t *testing.T) {
	info := "d" +
		bstr("length") + "i12e" +
		bstr("name") + bstr("test.txt") +
		bstr("piece length") + "i16384e" +
		bstr("pieces") + bstr(strings.Repeat("a", 19)) +
		"e"
	_, err := New(strings.NewReader(torrent("http://tracker.example/announce", info)))
	assert.Equal(t, errInvalidPieceData, err)
}
