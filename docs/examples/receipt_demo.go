// Example rendering sample receipts
// Run it from the repository root to see how each kind of text is
// classified and shaped, and to get one receipt per date locale.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/receipt"
	"github.com/atomicdeploy/form-receipts/pkg/rtl"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
)

func main() {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║             Receipt Text Shaping Demonstration           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	examples := []string{
		"محمد بن علي",
		"Jean Dupont",
		"مرحبا Ahmed 2026",
		"لا إله",
		"(نعم)",
		"",
	}

	for i, text := range examples {
		fmt.Printf("%d. %-10s %q\n", i+1, rtl.Classify(text), text)
		fmt.Printf("   Drawn as: %s\n", rtl.Prepare(text, rtl.Auto))
		fmt.Println()
	}

	dir, err := os.MkdirTemp("", "receipt-demo-*")
	if err != nil {
		fmt.Printf("❌ Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	created := time.Date(2027, 1, 5, 17, 4, 0, 0, time.UTC)
	for _, locale := range []string{"ar-DZ", "ar", "fr", "en"} {
		sub := submission.Submission{
			ID:        "demo-" + locale,
			Name:      "محمد بن علي",
			Email:     "mohamed@example.com",
			Phone:     "+213 555 00 00 00",
			Message:   "شكرا على التنظيم الجيد، see you at the workshop!",
			CreatedAt: created,
		}

		g := receipt.NewGenerator(receipt.Options{Locale: locale, ShowID: true})
		path, err := g.Save(dir, sub)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", locale, err)
			continue
		}
		fmt.Printf("🧾 %-5s %s\n", locale, filepath.Base(path))
	}

	fmt.Println()
	fmt.Printf("Receipts written to %s\n", dir)
}
