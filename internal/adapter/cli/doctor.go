package cli

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omnitea/omnitea/internal/adapter/render"
)

// defaultPolicyPath is where Debian-family images keep the ImageMagick 6
// policy. The stock policy forbids PDF decoding, which breaks the convert
// step; deployments overwrite it.
const defaultPolicyPath = "/etc/ImageMagick-6/policy.xml"

// DoctorCheck is one probe result.
type DoctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok, warn, fail
	Detail string `json:"detail"`
}

// DoctorReport aggregates all probe results.
type DoctorReport struct {
	Checks  []DoctorCheck `json:"checks"`
	Healthy bool          `json:"healthy"`
}

// doctorProbes holds the externals doctor pokes at, injectable in tests.
type doctorProbes struct {
	lookPath    func(file string) (string, error)
	runVersion  func(ctx context.Context, name string, args ...string) (string, error)
	policyPath  string
	workDir     string
	dockerEnv   string
	cgroupsFile string
}

func defaultProbes(policyPath string) doctorProbes {
	runner := render.ExecRunner{}
	return doctorProbes{
		lookPath: exec.LookPath,
		runVersion: func(ctx context.Context, name string, args ...string) (string, error) {
			stdout, _, err := runner.Run(ctx, "", name, args...)
			if err != nil {
				return "", err
			}
			return firstLine(stdout), nil
		},
		policyPath:  policyPath,
		workDir:     os.TempDir(),
		dockerEnv:   "/.dockerenv",
		cgroupsFile: "/proc/1/cgroup",
	}
}

func doctorCommand(deps Dependencies) *cobra.Command {
	var asJSON bool
	var policyPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Probe the external toolchain the render pipeline needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := runDoctor(cmd.Context(), defaultProbes(policyPath))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}

			if !report.Healthy {
				return errors.New("environment is not ready for rendering")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&policyPath, "policy", defaultPolicyPath, "ImageMagick policy file to inspect")
	return cmd
}

func runDoctor(ctx context.Context, probes doctorProbes) DoctorReport {
	var report DoctorReport

	tools := []struct {
		name        string
		versionArgs []string
	}{
		{"pandoc", []string{"--version"}},
		{"xelatex", []string{"--version"}},
		{"convert", []string{"-version"}},
	}
	for _, tool := range tools {
		report.Checks = append(report.Checks, checkTool(ctx, probes, tool.name, tool.versionArgs))
	}

	report.Checks = append(report.Checks,
		checkPolicy(probes.policyPath),
		checkWorkDir(probes.workDir),
		checkContainer(probes),
	)

	report.Healthy = true
	for _, check := range report.Checks {
		if check.Status == "fail" {
			report.Healthy = false
			break
		}
	}
	return report
}

func checkTool(ctx context.Context, probes doctorProbes, name string, versionArgs []string) DoctorCheck {
	path, err := probes.lookPath(name)
	if err != nil {
		return DoctorCheck{Name: name, Status: "fail", Detail: "not found on PATH"}
	}

	version, err := probes.runVersion(ctx, name, versionArgs...)
	if err != nil {
		return DoctorCheck{Name: name, Status: "warn", Detail: fmt.Sprintf("found at %s, version probe failed: %v", path, err)}
	}
	return DoctorCheck{Name: name, Status: "ok", Detail: version}
}

func checkPolicy(path string) DoctorCheck {
	const name = "imagemagick policy"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DoctorCheck{Name: name, Status: "warn", Detail: fmt.Sprintf("%s not found, ImageMagick defaults apply", path)}
		}
		return DoctorCheck{Name: name, Status: "warn", Detail: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	rights, found, err := pdfRights(data)
	if err != nil {
		return DoctorCheck{Name: name, Status: "warn", Detail: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}
	if found && rights == "none" {
		return DoctorCheck{Name: name, Status: "fail", Detail: "PDF decoding is disabled; the convert step will be refused"}
	}
	if found {
		return DoctorCheck{Name: name, Status: "ok", Detail: fmt.Sprintf("PDF rights: %s", rights)}
	}
	return DoctorCheck{Name: name, Status: "ok", Detail: "no PDF restriction"}
}

func checkWorkDir(dir string) DoctorCheck {
	const name = "work dir"

	f, err := os.CreateTemp(dir, "omnitea-doctor-*")
	if err != nil {
		return DoctorCheck{Name: name, Status: "fail", Detail: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return DoctorCheck{Name: name, Status: "ok", Detail: fmt.Sprintf("%s is writable", dir)}
}

func checkContainer(probes doctorProbes) DoctorCheck {
	const name = "container"

	if _, err := os.Stat(probes.dockerEnv); err == nil {
		return DoctorCheck{Name: name, Status: "ok", Detail: "running in a container"}
	}
	if data, err := os.ReadFile(probes.cgroupsFile); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") || strings.Contains(content, "kubepods") {
			return DoctorCheck{Name: name, Status: "ok", Detail: "running in a container"}
		}
	}
	return DoctorCheck{Name: name, Status: "ok", Detail: "not in a container"}
}

// policyMap mirrors the ImageMagick policy.xml document.
type policyMap struct {
	Policies []policyEntry `xml:"policy"`
}

type policyEntry struct {
	Domain  string `xml:"domain,attr"`
	Rights  string `xml:"rights,attr"`
	Pattern string `xml:"pattern,attr"`
}

// pdfRights reports the coder rights covering PDF, if any policy names it.
// Patterns may group formats, e.g. {PS,PDF,XPS}.
func pdfRights(data []byte) (string, bool, error) {
	var pm policyMap
	if err := xml.Unmarshal(data, &pm); err != nil {
		return "", false, err
	}
	for _, p := range pm.Policies {
		if p.Domain != "coder" {
			continue
		}
		if strings.Contains(p.Pattern, "PDF") {
			return p.Rights, true, nil
		}
	}
	return "", false, nil
}

func printReport(cmd *cobra.Command, report DoctorReport) {
	out := cmd.OutOrStdout()
	for _, check := range report.Checks {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", check.Status, check.Name, check.Detail)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
