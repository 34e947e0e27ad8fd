package utils

import (
	"bytes"
	"testing"
)

func TestCompressDataGzipRoundTrip(t *testing.T) {
	original := []byte("records management and disposition of federal holdings")

	compressed, err := CompressData(original, CompressionGzip)
	if err != nil {
		t.Fatalf("CompressData: %v", err)
	}
	if bytes.Equal(compressed, original) {
		t.Fatal("gzip output identical to input")
	}

	restored, err := DecompressData(compressed, CompressionGzip)
	if err != nil {
		t.Fatalf("DecompressData: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Errorf("round trip changed data: %q", restored)
	}
}

func TestCompressDataNonePassesThrough(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	out, err := CompressData(data, CompressionNone)
	if err != nil {
		t.Fatalf("CompressData: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("none algorithm altered data: %v", out)
	}
}

func TestCompressDataUnsupportedAlgorithm(t *testing.T) {
	if _, err := CompressData([]byte("x"), CompressionAlgorithm("zstd")); err == nil {
		t.Error("CompressData accepted unknown algorithm")
	}
	if _, err := DecompressData([]byte("x"), CompressionAlgorithm("zstd")); err == nil {
		t.Error("DecompressData accepted unknown algorithm")
	}
}
