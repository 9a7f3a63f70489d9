package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/shortlink-edge/link"
	"github.com/marcelsud/shortlink-edge/webhook"
)

/* validate-links - Standalone CLI tool to validate links.yaml and
 * endpoints.yaml before deploying them
 * Usage: go run cmd/validate-links/main.go [links.yaml [endpoints.yaml]]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	linksFile := "links.yaml"
	endpointsFile := "endpoints.yaml"
	if len(os.Args) > 1 {
		linksFile = os.Args[1]
	}
	if len(os.Args) > 2 {
		endpointsFile = os.Args[2]
	}

	fmt.Printf("Validating links file: %s\n", linksFile)

	directory := link.NewFileDirectory(link.NewNormalizer(nil))
	if err := directory.Load(linksFile); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\nError: %v\n", err)
		os.Exit(1)
	}

	records := directory.List()
	fmt.Printf("Loaded %d link(s):\n", len(records))
	for i, rec := range records {
		fmt.Printf("\n%d. Link: %s/%s\n", i+1, rec.Domain, rec.Key)
		fmt.Printf("   Target URL:  %s\n", rec.TargetURL)
		if rec.ExpiresAt != nil {
			fmt.Printf("   Expires At:  %s\n", rec.ExpiresAt)
		}
		if rec.Protected() {
			fmt.Printf("   Protected:   yes\n")
		}
		if rec.IOSURL != "" {
			fmt.Printf("   iOS URL:     %s\n", rec.IOSURL)
		}
		if rec.AndroidURL != "" {
			fmt.Printf("   Android URL: %s\n", rec.AndroidURL)
		}
		if len(rec.GeoRules) > 0 {
			fmt.Printf("   Geo Rules:   %d\n", len(rec.GeoRules))
		}
		if len(rec.WebhookIDs) > 0 {
			fmt.Printf("   Webhooks:    %v\n", rec.WebhookIDs)
		}
	}

	fmt.Printf("\nValidating endpoints file: %s\n", endpointsFile)

	endpoints, err := webhook.LoadEndpoints(endpointsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\nError: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d endpoint(s):\n", len(endpoints))
	for i, ep := range endpoints {
		fmt.Printf("\n%d. Endpoint: %s\n", i+1, ep.ID)
		fmt.Printf("   Workspace: %s\n", ep.WorkspaceID)
		fmt.Printf("   URL:       %s\n", ep.URL)
		fmt.Printf("   Triggers:  %v\n", ep.Triggers)
	}

	fmt.Printf("\nVALIDATION PASSED\n")
}
