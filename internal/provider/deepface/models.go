package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img       string `json:"img"`              // base64 data URI
	Model     string `json:"model_name"`       // "Facenet", "VGG-Face", etc
	Detector  string `json:"detector_backend"` // "opencv", "retinaface", etc
	Enforce   bool   `json:"enforce_detection"`
	AntiSpoof bool   `json:"anti_spoofing,omitempty"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	FacialArea FacialArea `json:"facial_area"`
	// FaceConfidence is absent on older deepface builds.
	FaceConfidence *float64 `json:"face_confidence,omitempty"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
