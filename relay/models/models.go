package models

// Submission holds the form fields of a relay request.
type Submission struct {
	To        string `schema:"to"`
	Cc        string `schema:"cc"`
	Subject   string `schema:"subject"`
	Text      string `schema:"text"`
	Payload   string `schema:"payload"`
	Timestamp string `schema:"timestamp"`
	Signature string `schema:"signature"`
}

// Attachment is the optional uploaded file. Content is left empty when Size
// is already known to exceed the ceiling.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// RelayRequest is one submission with its optional attachment.
type RelayRequest struct {
	Submission Submission
	Attachment *Attachment
}

// Field is one labelled payload value ready for display.
type Field struct {
	Key   string
	Label string
	Value string
}

// Record is the payload reduced to ordered display fields.
type Record struct {
	Fields []Field
}

// Get returns the display value of key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// RelayResponse is the success body.
type RelayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
