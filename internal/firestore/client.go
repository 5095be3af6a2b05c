// Package firestore persists cards, statements, transactions and import
// records in Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const (
	cardsCollectionBase         = "card-credit-cards"
	statementsCollectionBase    = "card-statements"
	statementKeysCollectionBase = "card-statement-keys"
	transactionsCollectionBase  = "card-transactions"
	fingerprintsCollectionBase  = "card-fingerprints"
	importsCollectionBase       = "card-imports"
)

var branchSanitizer = regexp.MustCompile(`[^a-z0-9-]`)

// collectionPrefix isolates preview deployments from production data.
//
//	PR_NUMBER=123            -> "pr_123_"
//	BRANCH_NAME=feature/auth -> "preview_feature-auth_"
//	BRANCH_NAME=main         -> ""
func collectionPrefix() string {
	if prNumber := os.Getenv("PR_NUMBER"); prNumber != "" {
		return fmt.Sprintf("pr_%s_", prNumber)
	}
	if branchName := os.Getenv("BRANCH_NAME"); branchName != "" && branchName != "main" {
		sanitized := branchSanitizer.ReplaceAllString(strings.ToLower(branchName), "-")
		if len(sanitized) > 50 {
			sanitized = sanitized[:50]
		}
		return fmt.Sprintf("preview_%s_", sanitized)
	}
	return ""
}

func collectionName(base string) string {
	return collectionPrefix() + base
}

// Client bundles the Firestore and Firebase Auth clients of one project
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

// NewClient creates a new Firestore client. Application Default Credentials are
// used unless credentialsFile is set.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// ProjectID returns the Firebase project the client is bound to
func (c *Client) ProjectID() string {
	return c.projectID
}

// Store returns a store.Store over this client's Firestore database
func (c *Client) Store() *Store {
	return NewStore(c.Firestore)
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}
