package response

type ImageData struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}
