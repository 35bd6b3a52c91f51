package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/auth"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/pkg/client"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL   string
	serverToken string
	cfgFile     string
	lexiconPath string
	outFormat   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "incidentctl",
	Short: "Cyber incident classification CLI",
	Long: `incidentctl classifies incident reports and manages the classifier model.

Without --server it runs the classifier in-process. With --server it talks
to a running incidentd.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.incidentctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("INCIDENTCTL")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server")
		}
		if serverToken == "" {
			serverToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.incidentctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "incidentd base URL; runs locally when empty")
	rootCmd.PersistentFlags().StringVar(&serverToken, "token", "", "operator token for remote training")
	rootCmd.PersistentFlags().StringVar(&lexiconPath, "lexicon", "", "lexicon YAML override for local runs")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func remote() (*client.Client, error) {
	var opts []client.Option
	if serverToken != "" {
		opts = append(opts, client.WithBearerToken(serverToken))
	}
	return client.New(serverURL, opts...)
}

func localService(corpus string) (*classifier.Service, error) {
	svc, err := classifier.Build(lexiconPath, zap.NewNop())
	if err != nil {
		return nil, err
	}
	if corpus == "" {
		return svc, nil
	}
	records, err := classifier.LoadCorpus(corpus)
	if err != nil {
		return nil, err
	}
	report := svc.Bootstrap(context.Background(), records)
	if report.Status != incident.TrainingSuccess {
		return nil, fmt.Errorf("train on %s: %s", corpus, report.Error)
	}
	return svc, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── classify ─────────────────────────────────────────────────────────────────

var (
	clsTitle       string
	clsDescription string
	clsLocation    string
	clsDate        string
	clsCorpus      string
	clsAlerts      bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify an incident report",
	Long: `classify predicts the category, threat level and risk of an incident.

Locally the rule fallback is used unless --corpus names a training corpus:

  incidentctl classify --corpus configs/bootstrap_corpus.json \
    --title "Suspicious email" --description "Asked me to verify my password" --location Delhi

With --server the report is sent to incidentd and stored in its history.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&clsTitle, "title", "", "Incident title")
	classifyCmd.Flags().StringVar(&clsDescription, "description", "", "Incident description")
	classifyCmd.Flags().StringVar(&clsLocation, "location", "", "Incident location")
	classifyCmd.Flags().StringVar(&clsDate, "date", "", "Incident date (free text)")
	classifyCmd.Flags().StringVar(&clsCorpus, "corpus", "", "Training corpus to fit before classifying locally")
	classifyCmd.Flags().BoolVar(&clsAlerts, "alerts", false, "Also derive alerts (remote only)")
	_ = classifyCmd.MarkFlagRequired("title")
	_ = classifyCmd.MarkFlagRequired("description")
}

func runClassify(cmd *cobra.Command, args []string) error {
	if serverURL == "" {
		if clsAlerts {
			return fmt.Errorf("--alerts requires --server")
		}
		svc, err := localService(clsCorpus)
		if err != nil {
			return err
		}
		res := svc.Classify(classifier.Input{
			Text:         incident.Text{Title: clsTitle, Description: clsDescription, Location: clsLocation},
			IncidentDate: clsDate,
		})
		if outFormat == "json" {
			return printJSON(res)
		}
		return printResult(string(res.PredictedType), res.ConfidenceScore, string(res.ThreatLevel), res.RiskScore, res.Explanation, res.Fallback)
	}

	c, err := remote()
	if err != nil {
		return err
	}
	req := client.IncidentRequest{
		Title:        clsTitle,
		Description:  clsDescription,
		Location:     clsLocation,
		IncidentDate: clsDate,
	}
	if clsAlerts {
		out, err := c.Alerts(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		if outFormat == "json" {
			return printJSON(out)
		}
		cl := out.Classification
		if err := printResult(cl.PredictedType, cl.ConfidenceScore, cl.ThreatLevel, cl.RiskScore, "", false); err != nil {
			return err
		}
		return printAlerts(out.Alerts)
	}
	out, err := c.Classify(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	if outFormat == "json" {
		return printJSON(out)
	}
	fmt.Printf("Incident ID: %s\n", out.IncidentID)
	return printResult(out.PredictedType, out.ConfidenceScore, out.ThreatLevel, out.RiskScore, out.AIExplanation, false)
}

func printResult(category string, confidence float64, level string, risk float64, explanation string, fallback bool) error {
	fmt.Printf("Category:    %s\n", category)
	fmt.Printf("Confidence:  %.2f\n", confidence)
	fmt.Printf("Threat:      %s\n", level)
	fmt.Printf("Risk:        %.2f\n", risk)
	if fallback {
		fmt.Println("Model:       rule fallback")
	}
	if explanation != "" {
		fmt.Printf("\n%s\n", explanation)
	}
	return nil
}

func printAlerts(alerts []client.Alert) error {
	if len(alerts) == 0 {
		fmt.Println("\nNo alerts.")
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPRIORITY\tMESSAGE\tACTIONS")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Type, a.Priority, a.Message, strings.Join(a.Actions, "; "))
	}
	return w.Flush()
}

// ── train ────────────────────────────────────────────────────────────────────

var trainCmd = &cobra.Command{
	Use:   "train <corpus.json>",
	Short: "Train the classifier from a JSON corpus",
	Long: `train fits the three-model ensemble on a JSON array of
{title, description, incident_type} records and prints the report.

Locally this only reports held-out accuracy. With --server the live model of
incidentd is replaced; pass --token when the service requires one.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	records, err := classifier.LoadCorpus(args[0])
	if err != nil {
		return err
	}

	if serverURL == "" {
		svc, err := classifier.Build(lexiconPath, zap.NewNop())
		if err != nil {
			return err
		}
		report := svc.Train(cmd.Context(), records)
		if err := printReport(report.Status, report.TrainingSamples, report.VocabularySize, report.MeanAccuracy, report.ModelAccuracy, report.Error); err != nil {
			return err
		}
		if report.Status != incident.TrainingSuccess {
			return fmt.Errorf("training %s", report.Status)
		}
		return nil
	}

	c, err := remote()
	if err != nil {
		return err
	}
	out := make([]client.TrainingRecord, len(records))
	for i, r := range records {
		out[i] = client.TrainingRecord{Title: r.Title, Description: r.Description, IncidentType: r.IncidentType}
	}
	report, err := c.Train(cmd.Context(), out)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := printReport(incident.TrainingStatus(report.Status), report.TrainingSamples, report.VocabularySize, report.MeanAccuracy, report.ModelAccuracy, report.Error); err != nil {
		return err
	}
	if report.Status != string(incident.TrainingSuccess) {
		return fmt.Errorf("training %s", report.Status)
	}
	return nil
}

func printReport(status incident.TrainingStatus, samples, vocab int, mean float64, scores map[string]float64, errMsg string) error {
	if outFormat == "json" {
		return printJSON(map[string]any{
			"status":           status,
			"training_samples": samples,
			"vocabulary_size":  vocab,
			"test_accuracy":    mean,
			"model_scores":     scores,
			"error":            errMsg,
		})
	}
	fmt.Printf("Status:      %s\n", status)
	fmt.Printf("Samples:     %d\n", samples)
	if errMsg != "" {
		fmt.Printf("Error:       %s\n", errMsg)
		return nil
	}
	fmt.Printf("Vocabulary:  %d\n", vocab)
	fmt.Printf("Accuracy:    %.3f\n\n", mean)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tACCURACY")
	for _, name := range []string{"random_forest", "logistic_regression", "naive_bayes"} {
		if v, ok := scores[name]; ok {
			fmt.Fprintf(w, "%s\t%.3f\n", name, v)
		}
	}
	return w.Flush()
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokSecret  string
	tokSubject string
	tokTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the training endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := auth.NewTokenIssuer(tokSecret, tokTTL)
		if err != nil {
			return err
		}
		tok, err := issuer.Issue(tokSubject, []string{auth.ScopeTrain})
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokSecret, "secret", os.Getenv("AUTH_SECRET"), "HS256 secret shared with incidentd (auth.secret)")
	tokenCmd.Flags().StringVar(&tokSubject, "subject", "operator", "Token subject")
	tokenCmd.Flags().DurationVar(&tokTTL, "ttl", 12*time.Hour, "Token lifetime")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the incidentctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("incidentctl %s\n", version)
	},
}
