package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/neurospin/epac/pkg/domain"
)

// envelope is the on-disk/on-wire representation of a stored entry. The kind
// discriminates how Data is decoded back into a typed object.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	kindResult    = "result"
	kindResultSet = "resultset"
	kindFlow      = "flow"
	kindMap       = "map"
	kindSlice     = "slice"
	kindValue     = "value"
)

// Codec extends the serializable kinds with externally defined types, such
// as workflow tree definitions. Match decides whether Encode applies to an
// object about to be saved.
type Codec struct {
	Kind   string
	Match  func(obj any) bool
	Encode func(obj any) ([]byte, error)
	Decode func(data []byte) (any, error)
}

var (
	codecMu sync.RWMutex
	codecs  []Codec
)

// RegisterCodec makes an external kind persistable by the JSON-envelope
// backends. Later registrations of the same kind replace earlier ones.
func RegisterCodec(c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	for i := range codecs {
		if codecs[i].Kind == c.Kind {
			codecs[i] = c
			return
		}
	}
	codecs = append(codecs, c)
}

func lookupCodecByObj(obj any) (Codec, bool) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	for _, c := range codecs {
		if c.Match(obj) {
			return c, true
		}
	}
	return Codec{}, false
}

func lookupCodecByKind(kind string) (Codec, bool) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	for _, c := range codecs {
		if c.Kind == kind {
			return c, true
		}
	}
	return Codec{}, false
}

// EncodeEntry wraps an object into its envelope bytes.
func EncodeEntry(obj any) ([]byte, error) {
	var (
		kind string
		data []byte
		err  error
	)
	switch v := obj.(type) {
	case domain.Result:
		kind = kindResult
		data, err = json.Marshal(v)
	case *domain.ResultSet:
		kind = kindResultSet
		data, err = json.Marshal(v)
	case domain.DataFlow:
		kind = kindFlow
		data, err = json.Marshal(map[string]any(v))
	case map[string]any:
		kind = kindMap
		data, err = json.Marshal(v)
	case []any:
		kind = kindSlice
		data, err = json.Marshal(v)
	default:
		if c, ok := lookupCodecByObj(obj); ok {
			kind = c.Kind
			data, err = c.Encode(obj)
		} else {
			kind = kindValue
			data, err = json.Marshal(obj)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s entry: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// DecodeEntry unwraps envelope bytes back into a typed object.
func DecodeEntry(raw []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unreadable store entry: %w", err)
	}
	switch env.Kind {
	case kindResult:
		var r domain.Result
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, fmt.Errorf("failed to decode result entry: %w", err)
		}
		return r, nil
	case kindResultSet:
		rs := domain.NewResultSet()
		if err := json.Unmarshal(env.Data, rs); err != nil {
			return nil, fmt.Errorf("failed to decode resultset entry: %w", err)
		}
		return rs, nil
	case kindFlow:
		var m map[string]any
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode flow entry: %w", err)
		}
		return domain.DataFlow(ReviveMap(m)), nil
	case kindMap:
		var m map[string]any
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode map entry: %w", err)
		}
		return ReviveMap(m), nil
	case kindSlice:
		var s []any
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode slice entry: %w", err)
		}
		return s, nil
	case kindValue:
		var v any
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode value entry: %w", err)
		}
		return v, nil
	default:
		if c, ok := lookupCodecByKind(env.Kind); ok {
			return c.Decode(env.Data)
		}
		return nil, fmt.Errorf("store entry has an unknown kind %q", env.Kind)
	}
}

// ReviveMap converts generic decoded JSON values back to domain types where
// the shape is unambiguous (numeric slices to FloatVector, blob references
// to BlobRef).
func ReviveMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = domain.Revive(v)
	}
	return out
}
