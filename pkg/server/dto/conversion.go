package dto

import (
	"time"

	"github.com/soundprediction/go-tabgraph/pkg/types"
)

// UploadResponse is returned by POST /upload after a successful conversion
type UploadResponse struct {
	ID          string             `json:"id,omitempty"`
	Message     string             `json:"message"`
	Format      types.Format       `json:"format"`
	NodesURL    string             `json:"nodes_url"`
	EdgesURL    string             `json:"edges_url"`
	NodesFile   string             `json:"nodes_file"`
	EdgesFile   string             `json:"edges_file"`
	NodeCount   int                `json:"node_count"`
	EdgeCount   int                `json:"edge_count"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// ConversionResponse is a stored conversion record with download links
type ConversionResponse struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Inputs      []string           `json:"inputs"`
	Message     string             `json:"message"`
	Format      types.Format       `json:"format"`
	NodesURL    string             `json:"nodes_url"`
	EdgesURL    string             `json:"edges_url"`
	NodeCount   int                `json:"node_count"`
	EdgeCount   int                `json:"edge_count"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}
