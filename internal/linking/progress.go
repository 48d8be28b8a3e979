package linking

// progress is the JSON shape persisted to Job.Progress between phases so
// a retried attempt skips claims it already processed (spec §4.5).
type progress struct {
	C2CDone []string `json:"c2c_done"`
	C2ODone []string `json:"c2o_done"`
}

func progressFromMap(m map[string]any) progress {
	var p progress
	if m == nil {
		return p
	}
	p.C2CDone = stringSlice(m["c2c_done"])
	p.C2ODone = stringSlice(m["c2o_done"])
	return p
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p progress) toMap() map[string]any {
	return map[string]any{
		"c2c_done": p.C2CDone,
		"c2o_done": p.C2ODone,
	}
}

func (p progress) c2cDoneSet() map[string]struct{} {
	return toSet(p.C2CDone)
}

func (p progress) c2oDoneSet() map[string]struct{} {
	return toSet(p.C2ODone)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
