package gateway

import "encoding/json"

// payloadKind discriminates the decoded shape of an upstream JSON body.
type payloadKind int

const (
	// payloadAbsent means the body held neither the endpoint's list field
	// nor its single-item field. Nothing is cached.
	payloadAbsent payloadKind = iota

	// payloadSingle means the body held one domain item.
	payloadSingle

	// payloadList means the body held a list of domain items.
	payloadList
)

// payload is the result of decoding an upstream body for one endpoint.
type payload struct {
	kind  payloadKind
	item  json.RawMessage
	items []json.RawMessage
}

// decodePayload classifies body by the endpoint's field names. The list
// field wins over the single field when both are present. When both field
// names are empty the whole body object is the single item (the profile
// endpoint returns the record at the top level).
func decodePayload(body []byte, listField, singleField string) (payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return payload{}, err
	}

	if listField != "" {
		if raw, ok := fields[listField]; ok {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return payload{}, err
			}
			return payload{kind: payloadList, items: items}, nil
		}
	}

	if singleField != "" {
		if raw, ok := fields[singleField]; ok {
			return payload{kind: payloadSingle, item: raw}, nil
		}
	}

	if listField == "" && singleField == "" {
		return payload{kind: payloadSingle, item: append(json.RawMessage(nil), body...)}, nil
	}

	return payload{kind: payloadAbsent}, nil
}
