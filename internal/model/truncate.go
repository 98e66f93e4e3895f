package model

// DefaultTruncateLimit is the per-string cap applied before transmission.
const DefaultTruncateLimit = 255

// Truncate returns a copy of v with every string value clipped to limit
// runes. Keys are left intact. A non-positive limit disables truncation.
// Truncation never fails; it clips.
func Truncate(v Value, limit int) Value {
	if limit <= 0 {
		return Clone(v)
	}
	switch val := v.(type) {
	case String:
		return String(truncateString(string(val), limit))
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Truncate(elem, limit)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Truncate(elem, limit)
		}
		return out
	default:
		return v
	}
}

// TruncateRequest clips every string in the request, including the token and
// profile id, exactly as the rendered wire object would be clipped.
func TruncateRequest(r Request, limit int) Request {
	out := Request{
		Mutation:   r.Mutation.Clone(),
		Token:      truncateString(r.Token, limit),
		DistinctID: truncateString(r.DistinctID, limit),
	}
	if out.Mutation.Props != nil {
		out.Mutation.Props = Truncate(out.Mutation.Props, limit).(Object)
	}
	for i, n := range out.Mutation.Names {
		out.Mutation.Names[i] = truncateString(n, limit)
	}
	return out
}

func truncateString(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
