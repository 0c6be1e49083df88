package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/davidahmann/foundry/pkg/types"
)

const defaultAddr = "http://localhost:8080"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "inspect":
		return handleInspect(args[2:], stdout, stderr)
	case "health":
		return handleHealth(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleInspect(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("FOUNDRY_ADDR", defaultAddr), "Foundry gateway address")
	audio := fs.String("audio", "", "secondary audio evidence file")
	report := fs.String("report", "", "benchmark report file")
	recipient := fs.String("recipient", "", "recipient account address (base58)")
	idem := fs.String("idem", "", "idempotency key for safe retries")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: foundry-cli inspect [flags] <evidence-file>")
		return 2
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := attachFile(w, "evidence", fs.Arg(0)); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if *audio != "" {
		if err := attachFile(w, "audio", *audio); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	if *report != "" {
		if err := attachFile(w, "report", *report); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	if *recipient != "" {
		if err := w.WriteField("recipient", *recipient); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}
	if err := w.Close(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	req, err := http.NewRequest(http.MethodPost, *addr+"/v1/inspect", &buf)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if *idem != "" {
		req.Header.Set("X-Idempotency-Key", *idem)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if res.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "gateway returned %d: %s\n", res.StatusCode, body)
		return 1
	}
	if *jsonOut {
		fmt.Fprintln(stdout, string(bytes.TrimSpace(body)))
		return 0
	}

	var env types.ResponseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "status=%s confidence=%d paymentStatus=%s\n", env.Status, env.Confidence, env.PaymentStatus)
	if env.TransactionSignature != "" {
		fmt.Fprintf(stdout, "tx=%s\n", env.TransactionSignature)
	}
	if env.ExplorerURL != "" {
		fmt.Fprintf(stdout, "explorer=%s\n", env.ExplorerURL)
	}
	fmt.Fprintf(stdout, "analysis: %s\n", env.Analysis)
	return 0
}

func handleHealth(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("FOUNDRY_ADDR", defaultAddr), "Foundry gateway address")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	res, err := http.Get(*addr + "/v1/health")
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer res.Body.Close()

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Custodian string `json:"custodian"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "status=%s custodian=%s\n", body.Status, body.Custodian)
	return 0
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", mediaType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage(stderr io.Writer) {
	fmt.Fprintln(stderr, "Usage: foundry-cli <command> [flags]")
	fmt.Fprintln(stderr, "")
	fmt.Fprintln(stderr, "Commands:")
	fmt.Fprintln(stderr, "  inspect <evidence-file>   submit evidence for a verdict and settlement")
	fmt.Fprintln(stderr, "  health                    query the gateway liveness probe")
}
