package recognition

import "fmt"

// Response pairs a service id with the face identifier that service returned.
// An empty FaceID means the provider found no matching or created face.
type Response struct {
	ServiceID int    `json:"service_id"`
	FaceID    string `json:"face_id,omitempty"`
}

// NewResponse builds a Response. A non-positive service id is a programming
// error: adapters carry fixed positive constants.
func NewResponse(serviceID int, faceID string) (*Response, error) {
	if serviceID <= 0 {
		return nil, fmt.Errorf("empty face recognition service id")
	}
	return &Response{ServiceID: serviceID, FaceID: faceID}, nil
}
