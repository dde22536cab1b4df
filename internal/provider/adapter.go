package provider

import "context"

// Adapter is the uniform capability surface the executor drives for one
// resource type. Concrete adapters (AWS clients, the in-memory fake) live
// under providers/ and are registered per resource type.
type Adapter interface {
	// Create provisions the resource and returns its opaque cloud identifier.
	Create(ctx context.Context, attrs map[string]any) (string, error)

	// Read fetches the live attributes of an existing resource.
	Read(ctx context.Context, externalID string) (map[string]any, error)

	// Update reconciles an existing resource towards the desired attributes.
	Update(ctx context.Context, externalID string, attrs map[string]any) error

	// Delete removes the resource.
	Delete(ctx context.Context, externalID string) error
}
