package domain

const blobRefField = "__blob__"

// BlobRef is the opaque handle substituted for a large array value inside a
// persisted object. The referenced array lives in the store's blob region
// and is transparently re-substituted at load time.
type BlobRef struct {
	Handle string `json:"__blob__"`
}

// BlobHolder is implemented by persisted types that declare which of their
// fields are large-blob-eligible. ExtractBlobs returns a copy of the value
// with every Array field of at least minRows rows replaced by a BlobRef
// produced by newHandle, together with the extracted arrays by handle.
// RestoreBlobs performs the inverse substitution through resolve.
type BlobHolder interface {
	ExtractBlobs(minRows int, newHandle func() string) (any, map[string]Array)
	RestoreBlobs(resolve func(handle string) (Array, error)) (any, error)
}

// ExtractBlobs declares every Array-valued metric of a Result as
// blob-eligible.
func (r Result) ExtractBlobs(minRows int, newHandle func() string) (any, map[string]Array) {
	blobs := make(map[string]Array)
	out := make(Result, len(r))
	for k, v := range r {
		if arr, ok := v.(Array); ok && arr.Len() >= minRows {
			handle := newHandle()
			blobs[handle] = arr
			out[k] = BlobRef{Handle: handle}
			continue
		}
		out[k] = v
	}
	return out, blobs
}

// RestoreBlobs substitutes every BlobRef metric back with its array.
func (r Result) RestoreBlobs(resolve func(handle string) (Array, error)) (any, error) {
	out := make(Result, len(r))
	for k, v := range r {
		ref, ok := v.(BlobRef)
		if !ok {
			out[k] = v
			continue
		}
		arr, err := resolve(ref.Handle)
		if err != nil {
			return nil, err
		}
		out[k] = arr
	}
	return out, nil
}

// ExtractBlobs delegates to each held Result.
func (rs *ResultSet) ExtractBlobs(minRows int, newHandle func() string) (any, map[string]Array) {
	blobs := make(map[string]Array)
	out := NewResultSet()
	for _, r := range rs.Values() {
		clone, sub := r.ExtractBlobs(minRows, newHandle)
		for h, arr := range sub {
			blobs[h] = arr
		}
		out.Put(clone.(Result))
	}
	return out, blobs
}

// RestoreBlobs delegates to each held Result.
func (rs *ResultSet) RestoreBlobs(resolve func(handle string) (Array, error)) (any, error) {
	out := NewResultSet()
	for _, r := range rs.Values() {
		restored, err := r.RestoreBlobs(resolve)
		if err != nil {
			return nil, err
		}
		out.Put(restored.(Result))
	}
	return out, nil
}

// ExtractBlobs declares every Array entry of a DataFlow as blob-eligible,
// so persisted inputs of distributed runs keep their bulk out of the inline
// region.
func (f DataFlow) ExtractBlobs(minRows int, newHandle func() string) (any, map[string]Array) {
	blobs := make(map[string]Array)
	out := make(DataFlow, len(f))
	for k, v := range f {
		if arr, ok := v.(Array); ok && arr.Len() >= minRows {
			handle := newHandle()
			blobs[handle] = arr
			out[k] = BlobRef{Handle: handle}
			continue
		}
		out[k] = v
	}
	return out, blobs
}

// RestoreBlobs substitutes every BlobRef entry back with its array.
func (f DataFlow) RestoreBlobs(resolve func(handle string) (Array, error)) (any, error) {
	out := make(DataFlow, len(f))
	for k, v := range f {
		ref, ok := v.(BlobRef)
		if !ok {
			out[k] = v
			continue
		}
		arr, err := resolve(ref.Handle)
		if err != nil {
			return nil, err
		}
		out[k] = arr
	}
	return out, nil
}
