package client

import "context"

// VisionClient sends one prompt with one base64 image to a vision model and returns its text reply
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
