package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestPayloadStructConversion(t *testing.T) {
	payload := NewFilePayload("id1", "sha1:abc", "lib", true, []byte{1, 2, 3})
	assert.NoError(t, payload.Validate())

	s, err := payload.ToStruct()
	require.NoError(t, err)

	decoded, err := FilePayloadFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	data, err := decoded.Decode()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestPayloadFromStructMissingField(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"id": "x"})
	require.NoError(t, err)

	_, err = FilePayloadFromStruct(s)
	assert.Error(t, err)

	s, err = structpb.NewStruct(map[string]any{
		"id": 1.0, "version": "v", "name": "n", "encoding": "raw", "content": "", "directory": false,
	})
	require.NoError(t, err)
	_, err = FilePayloadFromStruct(s)
	assert.Error(t, err)
}

func TestPayloadValidate(t *testing.T) {
	assert.NoError(t, NewFilePayload("a", "v", "f", false, nil).Validate())

	p := NewFilePayload("a", "v", "f", false, nil)
	p.Encoding = EncodingTarZstd
	assert.Error(t, p.Validate())

	p = NewFilePayload("a", "v", "f", true, nil)
	p.Encoding = EncodingRaw
	assert.Error(t, p.Validate())

	assert.Error(t, NewFilePayload("", "v", "f", false, nil).Validate())
	assert.Error(t, NewFilePayload("a", "", "f", false, nil).Validate())
	assert.Error(t, NewFilePayload("a", "v", "", false, nil).Validate())

	p = NewFilePayload("a", "v", "f", false, nil)
	p.Encoding = "gzip"
	assert.Error(t, p.Validate())
}

func TestPayloadDecodeInvalid(t *testing.T) {
	p := &FilePayload{Id: "a", Version: "v", Content: "!!!"}
	_, err := p.Decode()
	assert.Error(t, err)
}

func TestFileVersionIdString(t *testing.T) {
	assert.Equal(t, "a@v1", FileVersionId{Id: "a", Version: "v1"}.String())
}
