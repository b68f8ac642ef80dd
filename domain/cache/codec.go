package cache

import "encoding/json"

// The composite kinds (hash/list/set/zset/stream) are held as Go values on
// the wire between commands but as encoded JSON bytes inside an Entry, so
// that Entry.Data / len(Data) remains the single source of truth for size
// accounting across every kind, string included.

// HashView is the decoded form of a KindHash entry.
type HashView map[string]string

// ListView is the decoded form of a KindList entry, head first.
type ListView []string

// SetView is the decoded form of a KindSet entry.
type SetView map[string]struct{}

// ZMember is one (member, score) pair of a sorted set, kept ordered by
// ascending score with insertion-order stability on ties.
type ZMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ZSetView is the decoded form of a KindZSet entry: members sorted
// ascending by score, stable on ties.
type ZSetView []ZMember

// StreamEntry is one appended record of a KindStream entry.
type StreamEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// StreamView is the decoded form of a KindStream entry, oldest first.
type StreamView struct {
	Entries []StreamEntry `json:"entries"`
	Seq     int64         `json:"seq"`
}

func decodeHash(data []byte) (HashView, error) {
	if len(data) == 0 {
		return HashView{}, nil
	}
	var v HashView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		v = HashView{}
	}
	return v, nil
}

func encodeHash(v HashView) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeList(data []byte) (ListView, error) {
	if len(data) == 0 {
		return ListView{}, nil
	}
	var v ListView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeList(v ListView) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeSet(data []byte) (SetView, error) {
	if len(data) == 0 {
		return SetView{}, nil
	}
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	v := make(SetView, len(members))
	for _, m := range members {
		v[m] = struct{}{}
	}
	return v, nil
}

func encodeSet(v SetView) []byte {
	members := make([]string, 0, len(v))
	for m := range v {
		members = append(members, m)
	}
	b, _ := json.Marshal(members)
	return b
}

func decodeZSet(data []byte) (ZSetView, error) {
	if len(data) == 0 {
		return ZSetView{}, nil
	}
	var v ZSetView
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeZSet(v ZSetView) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeStream(data []byte) (StreamView, error) {
	if len(data) == 0 {
		return StreamView{Entries: []StreamEntry{}}, nil
	}
	var v StreamView
	if err := json.Unmarshal(data, &v); err != nil {
		return StreamView{}, err
	}
	return v, nil
}

func encodeStream(v StreamView) []byte {
	b, _ := json.Marshal(v)
	return b
}
