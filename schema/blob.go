package schema

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/darvin/datastore-admin/datastore"
)

// BlobMetaSuffix is appended to a blob property's name to form the side-field
// that carries the upload's metadata.
const BlobMetaSuffix = "_meta"

// BlobMeta records what was uploaded into a blob property.
type BlobMeta struct {
	ContentType string `msgpack:"content_type"`
	FileName    string `msgpack:"file_name"`
	FileSize    int64  `msgpack:"file_size"`
}

// BlobMetaProperty returns the side-field name for a blob property.
func BlobMetaProperty(name string) string {
	return name + BlobMetaSuffix
}

// EncodeBlobMeta serializes metadata for storage in the side-field.
func EncodeBlobMeta(meta BlobMeta) ([]byte, error) {
	raw, err := msgpack.Marshal(&meta)
	return raw, errors.Wrap(err, "marshal blob meta failed")
}

// DecodeBlobMeta reads the metadata side-field for a blob property, when
// present and well formed.
func DecodeBlobMeta(e datastore.Entity, name string) (*BlobMeta, bool) {
	raw, ok := e.Props[BlobMetaProperty(name)].([]byte)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	var meta BlobMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}
