// Package client is the Go SDK for the incident classification service.
//
// # Classifying an incident
//
//	c, err := client.New("http://localhost:8000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.Classify(ctx, client.IncidentRequest{
//	    Title:       "Suspicious email",
//	    Description: "Asked to verify my bank account via a link",
//	    Location:    "Mumbai",
//	})
//
// # Retraining
//
// Training requires an operator token when the service has an auth secret:
//
//	c, _ := client.New(base, client.WithBearerToken(token))
//	report, err := c.Train(ctx, records)
//	if errors.Is(err, client.ErrTrainingInProgress) {
//	    // another run holds the training lock
//	}
//
// Classification records are immutable, so GetClassification results can be
// cached with WithCacheTTL.
package client
