package catalog

type ServiceResponse struct {
	ID          int64  `json:"id"`
	ProviderID  int64  `json:"provider_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
}
