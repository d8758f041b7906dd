package protocol

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Content encodings of a FilePayload.
const (
	// Content is the raw file.
	EncodingRaw = "raw"
	// Content is a zstd compressed tar stream of a directory.
	EncodingTarZstd = "tar+zstd"
)

// Identifies one immutable revision of a distributable resource.
type FileVersionId struct {
	Id      string `json:"id"`
	Version string `json:"version"`
}

func (v FileVersionId) String() string {
	return v.Id + "@" + v.Version
}

// Transport representation of one resource revision.
type FilePayload struct {
	Id        string `json:"id"`
	Version   string `json:"version"`
	Name      string `json:"name"`
	Directory bool   `json:"directory"`
	Encoding  string `json:"encoding"`
	// Base64 encoded content
	Content string `json:"content"`
}

// VersionId returns the (id, version) pair of the payload.
func (p *FilePayload) VersionId() FileVersionId {
	return FileVersionId{Id: p.Id, Version: p.Version}
}

// Decode returns the binary content of the payload.
func (p *FilePayload) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(p.Content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding of %s: %w", p.VersionId(), err)
	}
	return data, nil
}

// Validate checks that all required fields are present and consistent.
func (p *FilePayload) Validate() error {
	switch {
	case p.Id == "":
		return fmt.Errorf("payload without id")
	case p.Version == "":
		return fmt.Errorf("payload %s without version", p.Id)
	case p.Name == "":
		return fmt.Errorf("payload %s without name", p.Id)
	}

	switch p.Encoding {
	case EncodingRaw:
		if p.Directory {
			return fmt.Errorf("directory payload %s with encoding %s", p.Id, p.Encoding)
		}
	case EncodingTarZstd:
		if !p.Directory {
			return fmt.Errorf("file payload %s with encoding %s", p.Id, p.Encoding)
		}
	default:
		return fmt.Errorf("payload %s with unknown encoding %q", p.Id, p.Encoding)
	}

	return nil
}

// NewFilePayload encodes binary content into a payload.
func NewFilePayload(id, version, name string, directory bool, data []byte) *FilePayload {
	encoding := EncodingRaw
	if directory {
		encoding = EncodingTarZstd
	}
	return &FilePayload{
		Id:        id,
		Version:   version,
		Name:      name,
		Directory: directory,
		Encoding:  encoding,
		Content:   base64.StdEncoding.EncodeToString(data),
	}
}

// ToStruct converts the payload into a protobuf struct for gRPC.
func (p *FilePayload) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":        p.Id,
		"version":   p.Version,
		"name":      p.Name,
		"directory": p.Directory,
		"encoding":  p.Encoding,
		"content":   p.Content,
	})
}

// FilePayloadFromStruct is the inverse of ToStruct.
func FilePayloadFromStruct(s *structpb.Struct) (*FilePayload, error) {
	fields := s.GetFields()

	str := func(key string) (string, error) {
		value, ok := fields[key]
		if !ok {
			return "", fmt.Errorf("payload field %q missing", key)
		}
		if _, ok := value.GetKind().(*structpb.Value_StringValue); !ok {
			return "", fmt.Errorf("payload field %q is not a string", key)
		}
		return value.GetStringValue(), nil
	}

	payload := &FilePayload{}
	var err error

	if payload.Id, err = str("id"); err != nil {
		return nil, err
	}
	if payload.Version, err = str("version"); err != nil {
		return nil, err
	}
	if payload.Name, err = str("name"); err != nil {
		return nil, err
	}
	if payload.Encoding, err = str("encoding"); err != nil {
		return nil, err
	}
	if payload.Content, err = str("content"); err != nil {
		return nil, err
	}

	directory, ok := fields["directory"]
	if !ok {
		return nil, fmt.Errorf("payload field %q missing", "directory")
	}
	payload.Directory = directory.GetBoolValue()

	return payload, nil
}
