package domain

import "strings"

// SiteStatusDeployed is the only status this worker ever writes for a site;
// sites are created once, after the owning job completes, and never mutated.
const SiteStatusDeployed = "deployed"

// Site is the denormalized projection of a completed job's result, inserted
// into the sites table exactly once per completed job.
type Site struct {
	JobID         string         `json:"job_id"`
	UserID        string         `json:"user_id,omitempty"`
	Domain        string         `json:"domain"`
	Subdomain     string         `json:"subdomain"`
	BusinessModel map[string]any `json:"business_model,omitempty"`
	ContentData   map[string]any `json:"content_data,omitempty"`
	DesignData    map[string]any `json:"design_data,omitempty"`
	DeploymentURL string         `json:"deployment_url,omitempty"`
	Status        string         `json:"status"`
	DeployedAt    string         `json:"deployed_at,omitempty"`
}

// SubdomainFor derives the subdomain slug from a domain name:
// lowercase with dots and underscores collapsed to hyphens.
func SubdomainFor(domain string) string {
	sub := strings.ToLower(domain)
	sub = strings.ReplaceAll(sub, ".", "-")
	sub = strings.ReplaceAll(sub, "_", "-")
	return sub
}
