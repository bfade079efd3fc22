package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting read from the configuration file. Key names
// match the file format (upper case) so existing config.json files keep
// working; mapstructure tags are what viper sees after folding keys to lower
// case.
type Config struct {
	PaperlessURL             string    `yaml:"PAPERLESS_URL" json:"PAPERLESS_URL" mapstructure:"paperless_url"`
	PaperlessToken           string    `yaml:"PAPERLESS_TOKEN" json:"PAPERLESS_TOKEN" mapstructure:"paperless_token"`
	Scopes                   []string  `yaml:"SCOPES" json:"SCOPES" mapstructure:"scopes"`
	ActionTaskListID         string    `yaml:"ACTION_TASK_LIST_ID" json:"ACTION_TASK_LIST_ID" mapstructure:"action_task_list_id"`
	ActionThreshold          float64   `yaml:"ACTION_THRESHOLD" json:"ACTION_THRESHOLD" mapstructure:"action_threshold"`
	CustomFieldStatus        int       `yaml:"CUSTOM_FIELD_STATUS" json:"CUSTOM_FIELD_STATUS" mapstructure:"custom_field_status"`
	CustomFieldAction        int       `yaml:"CUSTOM_FIELD_AKTION" json:"CUSTOM_FIELD_AKTION" mapstructure:"custom_field_aktion"`
	CustomFieldProcessedDate int       `yaml:"CUSTOM_FIELD_PROCESSED_DATE" json:"CUSTOM_FIELD_PROCESSED_DATE" mapstructure:"custom_field_processed_date"`
	StatusLabelToID          StatusMap `yaml:"STATUS_LABEL_TO_ID" json:"STATUS_LABEL_TO_ID" mapstructure:"-"`
	StatusNewLabel           string    `yaml:"STATUS_NEW_LABEL" json:"STATUS_NEW_LABEL" mapstructure:"status_new_label"`
	StatusDoneLabel          string    `yaml:"STATUS_DONE_LABEL" json:"STATUS_DONE_LABEL" mapstructure:"status_done_label"`
	TokenFile                string    `yaml:"TOKEN_FILE" json:"TOKEN_FILE" mapstructure:"token_file"`
	TasksAPIURL              string    `yaml:"TASKS_API_URL" json:"TASKS_API_URL" mapstructure:"tasks_api_url"`
	PublicBaseURL            string    `yaml:"PUBLIC_BASE_URL" json:"PUBLIC_BASE_URL" mapstructure:"public_base_url"`
	ReauthorizeURL           string    `yaml:"REAUTHORIZE_URL" json:"REAUTHORIZE_URL" mapstructure:"reauthorize_url"`
	SweepInterval            string    `yaml:"SWEEP_INTERVAL" json:"SWEEP_INTERVAL" mapstructure:"sweep_interval"`
	EventLog                 string    `yaml:"EVENT_LOG" json:"EVENT_LOG" mapstructure:"event_log"`
	SlackWebhookURL          string    `yaml:"SLACK_WEBHOOK_URL,omitempty" json:"SLACK_WEBHOOK_URL,omitempty" mapstructure:"slack_webhook_url"`
	ServerHost               string    `yaml:"SERVER_HOST" json:"SERVER_HOST" mapstructure:"server_host"`
	ServerPort               int       `yaml:"SERVER_PORT" json:"SERVER_PORT" mapstructure:"server_port"`
}

// SweepEvery parses SweepInterval, falling back to five minutes.
func (c Config) SweepEvery() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Clone returns a deep copy so snapshots handed to callers cannot be mutated
// through shared slices or maps.
func (c Config) Clone() Config {
	out := c
	out.Scopes = append([]string(nil), c.Scopes...)
	out.StatusLabelToID = c.StatusLabelToID.Clone()
	return out
}

// StatusMap is the STATUS_LABEL_TO_ID table: label -> choice id. It keeps the
// order of the configuration file so forms list labels the way the operator
// wrote them.
type StatusMap struct {
	labels []string
	ids    map[string]string
}

// NewStatusMap builds a StatusMap from label/id pairs in order.
func NewStatusMap(pairs ...[2]string) StatusMap {
	var m StatusMap
	for _, p := range pairs {
		m.Set(p[0], p[1])
	}
	return m
}

// Set adds or replaces a label.
func (m *StatusMap) Set(label, id string) {
	if m.ids == nil {
		m.ids = make(map[string]string)
	}
	if _, ok := m.ids[label]; !ok {
		m.labels = append(m.labels, label)
	}
	m.ids[label] = id
}

// ID returns the choice id of label.
func (m StatusMap) ID(label string) (string, bool) {
	id, ok := m.ids[label]
	return id, ok
}

// Label returns the first label mapped to id.
func (m StatusMap) Label(id string) (string, bool) {
	for _, l := range m.labels {
		if m.ids[l] == id {
			return l, true
		}
	}
	return "", false
}

// Labels returns labels in file order.
func (m StatusMap) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Len returns the number of labels.
func (m StatusMap) Len() int { return len(m.labels) }

// Clone returns an independent copy.
func (m StatusMap) Clone() StatusMap {
	var out StatusMap
	for _, l := range m.labels {
		out.Set(l, m.ids[l])
	}
	return out
}

// UnmarshalYAML decodes a mapping node, keeping key order. Since JSON is a
// subset of YAML this also covers config.json.
func (m *StatusMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("STATUS_LABEL_TO_ID: expected a mapping, got %s", node.Tag)
	}
	*m = StatusMap{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var label, id string
		if err := node.Content[i].Decode(&label); err != nil {
			return fmt.Errorf("STATUS_LABEL_TO_ID key: %w", err)
		}
		if err := node.Content[i+1].Decode(&id); err != nil {
			return fmt.Errorf("STATUS_LABEL_TO_ID[%s]: %w", label, err)
		}
		m.Set(label, id)
	}
	return nil
}

// MarshalYAML encodes the map as an ordered mapping node.
func (m StatusMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, l := range m.labels {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.ids[l]},
		)
	}
	return node, nil
}

// MarshalJSON encodes the map as an ordered JSON object.
func (m StatusMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range m.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.ids[l])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (m *StatusMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("STATUS_LABEL_TO_ID: expected an object")
	}
	*m = StatusMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := keyTok.(string)
		var id string
		if err := dec.Decode(&id); err != nil {
			return fmt.Errorf("STATUS_LABEL_TO_ID[%s]: %w", label, err)
		}
		m.Set(label, id)
	}
	_, err = dec.Token()
	return err
}
