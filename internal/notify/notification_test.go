package notify

import (
	"encoding/json"
	"testing"
)

func TestNotificationDecodeFoldsLegacyReadFlag(t *testing.T) {
	var n Notification
	payload := []byte(`{"id":"n1","title":"Review due","is_read":true}`)
	if err := json.Unmarshal(payload, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !n.Read {
		t.Fatalf("legacy is_read must fold into Read")
	}

	var m Notification
	payload = []byte(`{"id":"n2","title":"x","read":true,"is_read":false}`)
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.Read {
		t.Fatalf("read=true wins regardless of the legacy field")
	}

	var u Notification
	payload = []byte(`{"id":"n3","title":"x"}`)
	if err := json.Unmarshal(payload, &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Read {
		t.Fatalf("absent flags mean unread")
	}
}
