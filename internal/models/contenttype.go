package models

// ContentType identifies an entity type that audit entries can point to.
type ContentType struct {
	ID       int    `json:"id"`
	AppLabel string `json:"app_label"`
	Model    string `json:"model"`
}
