package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/client"
	"github.com/atomicdeploy/form-receipts/pkg/config"
	"github.com/atomicdeploy/form-receipts/pkg/export"
	"github.com/atomicdeploy/form-receipts/pkg/inspect"
	"github.com/atomicdeploy/form-receipts/pkg/receipt"
	"github.com/atomicdeploy/form-receipts/pkg/rtl"
	"github.com/atomicdeploy/form-receipts/pkg/server"
	"github.com/atomicdeploy/form-receipts/pkg/store"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information
	Version   = "1.0.0"
	BuildDate = "unknown"

	// Global flags
	configFile string

	// Color definitions
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)

const requestTimeout = 30 * time.Second

func main() {
	defaults := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "form-receipts",
		Short: "🧾 Bilingual registration form with PDF receipts",
		Long: `
╔═══════════════════════════════════════════════════════════╗
║            🧾 Form Receipts - Registration Desk           ║
║     Collects registrations and issues PDF receipts       ║
║           with Arabic and Latin text side by side        ║
╚═══════════════════════════════════════════════════════════╝

Serves the registration form and its API, or works with the
submissions directly: submit, list, export and print receipts.
Set --api-url to run the commands against a remote server.
`,
		Version: fmt.Sprintf("%s (built: %s)", Version, BuildDate),
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	pf.String("api-url", "", "Base URL of a running server, e.g. https://forms.example.com")
	pf.String("store", defaults.Store.Driver, "Store driver (memory, file or mongo)")
	pf.String("data", defaults.Store.Path, "Path of the JSON file used by the file store")
	pf.String("mongo-uri", defaults.Store.MongoURI, "MongoDB connection URI")
	pf.String("mongo-db", defaults.Store.MongoDatabase, "MongoDB database name")
	pf.String("locale", defaults.Receipt.Locale, "Locale of receipt dates (ar-DZ, ar, fr or en)")
	pf.String("timezone", defaults.Receipt.Timezone, "Time zone of receipt dates, e.g. Africa/Algiers")
	pf.Bool("show-id", false, "Print the submission id on receipts")
	pf.StringP("output", "o", defaults.Output, "Output directory for receipts")
	pf.BoolP("verbose", "v", false, "Enable verbose logging")

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Start the web form, REST API and WebSocket server",
		Args:  cobra.NoArgs,
		Run:   runServe,
	}
	serveCmd.Flags().StringP("addr", "a", defaults.Addr, "Server address (e.g., :5000)")
	serveCmd.Flags().String("allowed-origin", defaults.AllowedOrigin, "Value of Access-Control-Allow-Origin")
	serveCmd.Flags().BoolP("watch", "w", true, "Watch the file store for outside changes and broadcast them")
	serveCmd.Flags().StringP("debounce", "d", "500ms", "Debounce duration for watch mode (e.g., 0s, 500ms, 1s, 5s)")

	// Submit command
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "📝 Register a new submission",
		Args:  cobra.NoArgs,
		Run:   runSubmit,
	}
	submitCmd.Flags().String("name", "", "Full name")
	submitCmd.Flags().String("email", "", "Email address")
	submitCmd.Flags().String("phone", "", "Phone number")
	submitCmd.Flags().String("message", "", "Optional message")
	submitCmd.Flags().BoolP("receipt", "r", false, "Save the PDF receipt after submitting")

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List submissions, newest first",
		Args:  cobra.NoArgs,
		Run:   runList,
	}

	// Receipt command
	receiptCmd := &cobra.Command{
		Use:   "receipt [submission-id]",
		Short: "🧾 Save the PDF receipt of a submission",
		Args:  cobra.ExactArgs(1),
		Run:   runReceipt,
	}

	// Export command
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "🔄 Export all submissions to JSON, CSV or YAML",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}
	exportCmd.Flags().StringP("format", "f", "", "Output format (json, csv or yaml); guessed from --file when empty")
	exportCmd.Flags().String("file", "", "Write to this file instead of stdout")
	exportCmd.Flags().Bool("visual", false, "Shape Arabic text for terminals without bidi support")

	// Inspect command
	inspectCmd := &cobra.Command{
		Use:   "inspect [pdf-file]",
		Short: "🔍 Show information about a receipt PDF",
		Args:  cobra.ExactArgs(1),
		Run:   runInspect,
	}
	inspectCmd.Flags().Bool("text", false, "Print the extracted text")

	rootCmd.AddCommand(serveCmd, submitCmd, listCmd, receiptCmd, exportCmd, inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Set up logging
	log.SetFlags(0)
	log.SetOutput(os.Stdout)
}

// loadConfig reads the configuration or exits.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openStore returns the API client when an api url is configured and the
// local store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Remote() {
		c, err := client.New(cfg.APIURL, requestTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return store.Open(ctx, cfg.Store)
}

func mustOpenStore(ctx context.Context, cfg *config.Config) store.Store {
	st, err := openStore(ctx, cfg)
	if err != nil {
		errorColor.Printf("❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	if cfg.Verbose {
		if cfg.Remote() {
			infoColor.Printf("📡 Using server: %s\n", cfg.APIURL)
		} else {
			infoColor.Printf("💾 Using %s store\n", cfg.Store.Driver)
		}
	}
	return st
}

// printError reports err with the validation messages or server details
// it carries.
func printError(action string, err error) {
	errorColor.Printf("❌ %s: %v\n", action, err)

	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		for _, msg := range verr.Messages {
			warningColor.Printf("   • %s\n", msg)
		}
		return
	}
	if client.IsTransport(err) {
		warningColor.Println("💡 Is the server running? Check --api-url")
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	watchFile, _ := cmd.Flags().GetBool("watch")
	debounceStr, _ := cmd.Flags().GetString("debounce")

	if cfg.Remote() {
		warningColor.Println("⚠️  --api-url is ignored by serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		errorColor.Printf("❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	infoColor.Printf("💾 Using %s store\n", cfg.Store.Driver)

	// Create server
	srv, err := server.NewServer(ctx, st, server.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Receipts:      receipt.NewGenerator(cfg.ReceiptOptions()),
		Verbose:       cfg.Verbose,
	})
	if err != nil {
		errorColor.Printf("❌ Failed to create server: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Start file watching if enabled
	if watchFile && cfg.Store.Driver == store.DriverFile {
		debounceDuration := parseDebounceDuration(debounceStr)

		if err := srv.StartWatching(debounceDuration); err != nil {
			errorColor.Printf("❌ Failed to start file watching: %v\n", err)
			os.Exit(1)
		}
	}

	// Start server
	successColor.Printf("🌐 Server running at http://localhost%s\n", cfg.Addr)
	infoColor.Println("📝 Press Ctrl+C to stop the server")

	if err := srv.Start(ctx, cfg.Addr); err != nil {
		errorColor.Printf("❌ Server error: %v\n", err)
		os.Exit(1)
	}
	successColor.Println("👋 Server stopped")
}

func runSubmit(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	saveReceipt, _ := cmd.Flags().GetBool("receipt")

	in := submission.Input{}
	in.Name, _ = cmd.Flags().GetString("name")
	in.Email, _ = cmd.Flags().GetString("email")
	in.Phone, _ = cmd.Flags().GetString("phone")
	in.Message, _ = cmd.Flags().GetString("message")

	ctx := context.Background()
	st := mustOpenStore(ctx, cfg)
	defer st.Close()

	sub, err := st.Create(ctx, in)
	if err != nil {
		printError("Submission rejected", err)
		os.Exit(1)
	}

	successColor.Println("✅ Submission registered")
	printSubmission(sub)

	if saveReceipt {
		path, err := writeReceipt(ctx, cfg, st, sub)
		if err != nil {
			printError("Failed to save receipt", err)
			os.Exit(1)
		}
		successColor.Printf("🧾 Receipt saved to: %s\n", path)
	}
}

func runList(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	ctx := context.Background()
	st := mustOpenStore(ctx, cfg)
	defer st.Close()

	subs, err := st.List(ctx)
	if err != nil {
		printError("Failed to list submissions", err)
		os.Exit(1)
	}

	fmt.Println()
	successColor.Printf("📋 Submissions (%d)\n", len(subs))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for i, sub := range subs {
		fmt.Printf("%2d. %-24s %-30s %s\n", i+1, sub.ID, sub.Email, sub.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
}

func runReceipt(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	ctx := context.Background()
	st := mustOpenStore(ctx, cfg)
	defer st.Close()

	sub, err := st.Get(ctx, args[0])
	if err != nil {
		printError("Failed to load submission", err)
		os.Exit(1)
	}

	path, err := writeReceipt(ctx, cfg, st, sub)
	if err != nil {
		printError("Failed to save receipt", err)
		os.Exit(1)
	}
	successColor.Printf("🧾 Receipt saved to: %s\n", path)
}

// writeReceipt saves the receipt of sub into the output directory. A
// remote server renders the receipt itself; locally it is generated here.
func writeReceipt(ctx context.Context, cfg *config.Config, st store.Store, sub submission.Submission) (string, error) {
	if c, ok := st.(*client.Client); ok {
		data, err := c.Receipt(ctx, sub.ID)
		if err != nil {
			return "", err
		}
		return receipt.SaveFile(cfg.Output, sub.ID, data)
	}

	return receipt.NewGenerator(cfg.ReceiptOptions()).Save(cfg.Output, sub)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	formatStr, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("file")
	visual, _ := cmd.Flags().GetBool("visual")

	var format export.Format
	var err error
	switch {
	case formatStr != "":
		format, err = export.ParseFormat(formatStr)
	case outputFile != "":
		format, err = export.FormatFromPath(outputFile)
	default:
		format = export.FormatJSON
	}
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st := mustOpenStore(ctx, cfg)
	defer st.Close()

	subs, err := st.List(ctx)
	if err != nil {
		printError("Failed to list submissions", err)
		os.Exit(1)
	}

	var exp *export.Exporter
	if visual {
		exp = export.NewExporter(func(s string) string { return rtl.Prepare(s, rtl.Auto) })
	} else {
		exp = export.NewExporter(nil)
	}

	if outputFile == "" {
		if err := exp.Write(os.Stdout, format, subs); err != nil {
			errorColor.Fprintf(os.Stderr, "❌ Failed to export: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := exp.ExportToFile(outputFile, format, subs); err != nil {
		errorColor.Printf("❌ Failed to export to %s: %v\n", format, err)
		os.Exit(1)
	}
	successColor.Printf("✅ Exported %d submissions to: %s\n", len(subs), outputFile)
}

func runInspect(cmd *cobra.Command, args []string) {
	pdfFile := args[0]
	showText, _ := cmd.Flags().GetBool("text")

	infoColor.Printf("🔍 Reading PDF: %s\n", filepath.Base(pdfFile))

	report, err := inspect.File(pdfFile)
	if err != nil {
		errorColor.Printf("❌ Failed to inspect PDF: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	successColor.Println("📄 PDF Information")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	infoColor.Printf("📁 File:      %s (%d bytes)\n", filepath.Base(report.Path), report.Size)
	infoColor.Printf("🏷️  Version:   %s\n", report.Version)
	infoColor.Printf("📑 Pages:     %d\n", report.Pages)
	if report.Title != "" {
		infoColor.Printf("📛 Title:     %s\n", report.Title)
	}
	if report.Creator != "" {
		infoColor.Printf("🛠️  Creator:   %s\n", report.Creator)
	}
	if report.Producer != "" {
		infoColor.Printf("🏭 Producer:  %s\n", report.Producer)
	}
	if report.Encrypted {
		warningColor.Println("🔒 Encrypted: text not extracted")
	}
	if report.Valid() {
		successColor.Println("✅ Valid PDF")
	} else {
		warningColor.Printf("⚠️  Validation failed: %s\n", report.ValidationError)
	}
	fmt.Println()

	if showText && report.TextError != "" {
		warningColor.Printf("⚠️  Text extraction failed: %s\n", report.TextError)
	}
	if showText && report.Text != "" {
		successColor.Println("📝 Text")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(report.Text)
		fmt.Println()
	}
}

func printSubmission(sub submission.Submission) {
	fmt.Printf("🆔 ID:      %s\n", sub.ID)
	fmt.Printf("👤 Name:    %s\n", sub.Name)
	fmt.Printf("📧 Email:   %s\n", sub.Email)
	fmt.Printf("📞 Phone:   %s\n", sub.Phone)
	if sub.Message != "" {
		fmt.Printf("💬 Message: %s\n", sub.Message)
	}
	fmt.Printf("📅 Created: %s\n", sub.CreatedAt.Format("2006-01-02 15:04:05"))
}

// parseDebounceDuration parses and validates a debounce duration string
func parseDebounceDuration(durationStr string) time.Duration {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		errorColor.Printf("❌ Invalid debounce duration '%s': %v\n", durationStr, err)
		errorColor.Println("💡 Valid examples: 0s, 500ms, 1s, 5s, 1m")
		os.Exit(1)
	}
	return duration
}
