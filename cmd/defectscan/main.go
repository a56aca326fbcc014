package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"defect-inspector/config"
	"defect-inspector/internal/api/httpclient"
	app "defect-inspector/internal/application"
	"defect-inspector/internal/domain/entity"
	"defect-inspector/internal/infrastructure/codec"
	"defect-inspector/internal/infrastructure/describer"
	"defect-inspector/internal/infrastructure/storage"
	"defect-inspector/internal/infrastructure/vision"
	"defect-inspector/internal/logging"
)

const (
	exitOK       = 0
	exitIO       = 1
	exitPipeline = 2
)

// result печатается с флагом -json.
type result struct {
	DefectCount int                   `json:"defect_count"`
	Regions     []entity.DefectRegion `json:"regions"`
	Summary     string                `json:"summary,omitempty"`
	Matches     int                   `json:"matches,omitempty"`
	Inliers     int                   `json:"inliers,omitempty"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   string                `json:"error_kind,omitempty"`
}

type options struct {
	template   string
	test       string
	out        string
	paramsFile string
	server     string
	asJSON     bool
	verbose    bool
	timeout    time.Duration
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("defectscan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.template, "template", "", "path to the template image")
	fs.StringVar(&opts.test, "test", "", "path to the image to inspect")
	fs.StringVar(&opts.out, "out", "", "where to write the annotated image")
	fs.StringVar(&opts.paramsFile, "params", "", "YAML file with pipeline params")
	fs.StringVar(&opts.server, "server", "", "inspect through the HTTP API at this URL instead of locally")
	fs.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return exitIO
	}
	if opts.template == "" || opts.test == "" {
		fmt.Fprintln(stderr, "-template and -test are required")
		fs.Usage()
		return exitIO
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log := logging.New(level, "text")
	log.SetOutput(stderr)

	template, err := os.ReadFile(opts.template)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitIO
	}
	test, err := os.ReadFile(opts.test)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitIO
	}

	params := entity.DefaultParams()
	if opts.paramsFile != "" {
		if params, err = config.LoadParams(opts.paramsFile); err != nil {
			fmt.Fprintln(stderr, err)
			if errors.Is(err, entity.ErrInvalidParams) {
				return exitPipeline
			}
			return exitIO
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if opts.server != "" {
		return runRemote(ctx, opts, template, test, params, stdout, stderr)
	}
	return runLocal(ctx, opts, template, test, params, log, stdout, stderr)
}

func runLocal(ctx context.Context, opts options, template, test []byte, params entity.Params, log *logrus.Logger, stdout, stderr io.Writer) int {
	users := app.NewUserService(storage.NewMemoryUserRepository())
	svc := app.NewInspectionService(users, vision.NewGoCVDetector(log, nil), describer.NewTextDescriber(),
		codec.New(), storage.NewMemoryTemplateStore(), params, log)

	out, err := svc.Inspect(ctx, template, test, params)
	if err != nil {
		report(stdout, stderr, opts.asJSON, result{Error: err.Error(), ErrorKind: entity.ErrorKind(err)})
		return exitCode(entity.ErrorKind(err))
	}

	if opts.out != "" && out.Report.Annotated != nil {
		if err := codec.Save(opts.out, out.Report.Annotated); err != nil {
			fmt.Fprintln(stderr, err)
			return exitIO
		}
	}

	res := result{
		DefectCount: out.Report.DefectCount,
		Regions:     out.Report.Regions,
		Matches:     out.Report.Matches,
		Inliers:     out.Report.Inliers,
	}
	if out.Description != nil {
		res.Summary = out.Description.Text
	}
	report(stdout, stderr, opts.asJSON, res)
	return exitOK
}

func runRemote(ctx context.Context, opts options, template, test []byte, params entity.Params, stdout, stderr io.Writer) int {
	client := httpclient.New(opts.server, 30*time.Second)

	var p *entity.Params
	if opts.paramsFile != "" {
		p = &params
	}
	id, err := client.Submit(ctx, template, test, p)
	if err != nil {
		fmt.Fprintln(stderr, err)
		var apiErr *httpclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind != "" {
			return exitCode(apiErr.Kind)
		}
		return exitIO
	}

	job, err := client.Wait(ctx, id, 500*time.Millisecond)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitIO
	}
	if job.Status == entity.JobFailed {
		report(stdout, stderr, opts.asJSON, result{Error: job.Error, ErrorKind: job.ErrorKind})
		return exitCode(job.ErrorKind)
	}

	if opts.out != "" {
		img, err := client.Image(ctx, id)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitIO
		}
		if err := os.WriteFile(opts.out, img, 0o644); err != nil {
			fmt.Fprintln(stderr, err)
			return exitIO
		}
	}

	report(stdout, stderr, opts.asJSON, result{
		DefectCount: job.DefectCount,
		Regions:     job.Regions,
		Summary:     job.Summary,
	})
	return exitOK
}

// exitCode: ошибки конвейера отличаются от ошибок ввода-вывода.
func exitCode(kind string) int {
	switch kind {
	case "", entity.KindInternal:
		return exitIO
	default:
		return exitPipeline
	}
}

func report(stdout, stderr io.Writer, asJSON bool, res result) {
	if asJSON {
		if res.Regions == nil {
			res.Regions = []entity.DefectRegion{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}

	if res.Error != "" {
		fmt.Fprintf(stderr, "inspection failed (%s): %s\n", res.ErrorKind, res.Error)
		return
	}
	fmt.Fprintf(stdout, "defects: %d\n", res.DefectCount)
	for _, r := range res.Regions {
		fmt.Fprintf(stdout, "  #%d x=%d y=%d w=%d h=%d\n", r.Label, r.X, r.Y, r.Width, r.Height)
	}
}
