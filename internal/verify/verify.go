// Package verify runs the scripted connectivity and authorization checks
// against a provisioned environment.
//
// Checks probe from inside the mesh: each one execs curl in a ready EKS pod
// and asserts on the response, so a passing check proves the whole path
// (ztunnel, HBONE, east-west gateway, ECS registration) rather than just the
// load balancer. Deny checks invert the assertion to prove authorization
// policies actually block traffic.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meshlab-io/meshlab/internal/config"
	"github.com/meshlab-io/meshlab/internal/platform/kube"
	"github.com/meshlab-io/meshlab/internal/provisioning"
	"github.com/meshlab-io/meshlab/internal/state"
	"github.com/meshlab-io/meshlab/internal/util/retry"
)

// MeshWorkloadsCheck is the name of the built-in ztunnel registration check.
const MeshWorkloadsCheck = "mesh-workloads"

// curlMaxTime bounds a single probe; the retry loop owns the overall budget.
const curlMaxTime = "10"

// PodExecer locates pods and runs commands in them.
// Implemented by internal/platform/kube.Client.
type PodExecer interface {
	GetReadyPod(ctx context.Context, namespace, labelSelector string) (string, error)
	Exec(ctx context.Context, namespace, pod string, command []string) (kube.ExecResult, error)
}

// Result is the outcome of one check.
type Result struct {
	Name    string
	Passed  bool
	Message string
	Elapsed time.Duration
}

// Runner executes the configured checks.
type Runner struct {
	Kube     PodExecer
	Istio    provisioning.IstioRunner
	Observer provisioning.Observer

	// Timeout is the per-check budget; probes are retried until it expires.
	Timeout  time.Duration
	Interval time.Duration
}

// NewRunner creates a runner from a connected provisioning context.
func NewRunner(ctx *provisioning.Context) (*Runner, error) {
	if ctx.Kube == nil {
		return nil, errors.New("not connected to the EKS cluster; run apply first")
	}
	return &Runner{
		Kube:     ctx.Kube,
		Istio:    ctx.Istio,
		Observer: ctx.Observer,
		Timeout:  ctx.Timeouts.Verify,
		Interval: 5 * time.Second,
	}, nil
}

// Run executes the configured checks plus the built-in mesh registration
// check. When only is non-empty, just that check runs. Results are printed
// as a summary table; any failed check turns into an error.
func (r *Runner) Run(ctx context.Context, cfg *config.Config, st *state.State, only string) ([]Result, error) {
	var results []Result

	matched := false
	for _, check := range cfg.Verify.Checks {
		if only != "" && check.Name != only {
			continue
		}
		matched = true
		results = append(results, r.runCheck(ctx, check))
	}

	if r.Istio != nil && len(st.RegisteredServices) > 0 && (only == "" || only == MeshWorkloadsCheck) {
		matched = true
		results = append(results, r.runMeshCheck(ctx, len(st.RegisteredServices)))
	}

	if only != "" && !matched {
		return nil, fmt.Errorf("no check named %q", only)
	}

	failed := 0
	for _, res := range results {
		eventType := provisioning.EventCheckPassed
		if !res.Passed {
			eventType = provisioning.EventCheckFailed
			failed++
		}
		r.Observer.Event(provisioning.Event{
			Type:     eventType,
			Phase:    "verify",
			Resource: res.Name,
			Message:  res.Message,
		})
	}

	r.printSummary(results)

	if failed > 0 {
		return results, fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return results, nil
}

// runCheck retries the probe until it matches the expectation or the budget
// runs out. For ExpectFailure checks a failing probe is the expected state,
// so a single denied request passes immediately; a succeeding probe keeps
// being retried in case the policy has not propagated yet, and the check
// fails when it still succeeds at the deadline.
func (r *Runner) runCheck(ctx context.Context, check config.CheckSpec) Result {
	start := time.Now()
	lastMsg := "not attempted"

	err := retry.PollUntil(ctx, r.Interval, r.Timeout, func(ctx context.Context) (bool, error) {
		ok, msg := r.probe(ctx, check)
		lastMsg = msg
		return ok != check.ExpectFailure, nil
	})

	passed := err == nil
	msg := lastMsg
	if check.ExpectFailure {
		if passed {
			msg = "denied as expected: " + lastMsg
		} else {
			msg = "expected failure but probe succeeded: " + lastMsg
		}
	}
	return Result{Name: check.Name, Passed: passed, Message: msg, Elapsed: time.Since(start)}
}

// probe runs one curl inside the source pod and evaluates the response.
func (r *Runner) probe(ctx context.Context, check config.CheckSpec) (bool, string) {
	namespace := check.FromNamespace
	if namespace == "" {
		namespace = "default"
	}

	pod, err := r.Kube.GetReadyPod(ctx, namespace, check.FromSelector)
	if err != nil {
		return false, err.Error()
	}

	// -w appends the status code on its own line so one exec yields both
	// body and status.
	res, err := r.Kube.Exec(ctx, namespace, pod, []string{
		"curl", "-sS", "--max-time", curlMaxTime, "-w", "\n%{http_code}", check.URL,
	})
	if err != nil {
		return false, err.Error()
	}

	body, status, err := splitCurlOutput(res.Stdout)
	if err != nil {
		return false, err.Error()
	}

	wantStatus := check.ExpectStatus
	if wantStatus == 0 {
		wantStatus = 200
	}
	if status != wantStatus {
		return false, fmt.Sprintf("status %d, want %d", status, wantStatus)
	}
	if check.ExpectSubstring != "" && !strings.Contains(body, check.ExpectSubstring) {
		return false, fmt.Sprintf("response does not contain %q", check.ExpectSubstring)
	}
	return true, fmt.Sprintf("status %d", status)
}

// runMeshCheck verifies ztunnel sees at least the registered ECS workloads.
func (r *Runner) runMeshCheck(ctx context.Context, want int) Result {
	start := time.Now()
	lastMsg := "not attempted"

	err := retry.PollUntil(ctx, r.Interval, r.Timeout, func(ctx context.Context) (bool, error) {
		count, err := r.Istio.ZtunnelWorkloadCount(ctx)
		if err != nil {
			lastMsg = err.Error()
			return false, nil
		}
		lastMsg = fmt.Sprintf("%d workloads known to ztunnel, want at least %d", count, want)
		return count >= want, nil
	})

	return Result{Name: MeshWorkloadsCheck, Passed: err == nil, Message: lastMsg, Elapsed: time.Since(start)}
}

func (r *Runner) printSummary(results []Result) {
	passed := 0
	r.Observer.Printf("%-28s %-6s %s", "CHECK", "RESULT", "DETAIL")
	for _, res := range results {
		verdict := "FAIL"
		if res.Passed {
			verdict = "PASS"
			passed++
		}
		r.Observer.Printf("%-28s %-6s %s (%v)", res.Name, verdict, res.Message, res.Elapsed.Round(time.Millisecond))
	}
	r.Observer.Printf("%d/%d checks passed", passed, len(results))
}

// splitCurlOutput separates the response body from the status code line
// appended by -w.
func splitCurlOutput(out string) (string, int, error) {
	idx := strings.LastIndex(out, "\n")
	if idx < 0 {
		return "", 0, fmt.Errorf("unexpected curl output %q", out)
	}
	status, err := strconv.Atoi(strings.TrimSpace(out[idx+1:]))
	if err != nil {
		return "", 0, fmt.Errorf("unexpected curl status line %q", out[idx+1:])
	}
	return out[:idx], status, nil
}
