package raid

import (
	"fmt"
	"strings"
	"time"

	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

// Timeline action names shared by the built-in vectors.
const (
	ActionCheckMFA       = "CHECK_MFA"
	ActionCheckPassword  = "CHECK_PASSWORD_POLICY"
	ActionCheckTokens    = "CHECK_TOKEN_VALIDITY"
	ActionCheckAccess    = "CHECK_PUBLIC_ACCESS"
	ActionCheckProvider  = "CHECK_PROVIDER_CONTROLS"
	ActionRaidComplete   = "RAID_COMPLETE"
	resultControlsHeld   = "CONTROLS_HELD"
	resultControlsFailed = "CONTROLS_FAILED"
)

// optionalIntensityThreshold is the fixed effort bar above which an
// "optional" control is assumed bypassable: sufficient attacker effort
// defeats a control the target does not enforce.
const optionalIntensityThreshold = 5

// simulation is a running vector's scratch state. Vectors append findings
// and timeline entries for every decision step they take.
type simulation struct {
	findings []string
	timeline []TimelineEntry
}

func (s *simulation) finding(format string, args ...any) {
	s.findings = append(s.findings, fmt.Sprintf(format, args...))
}

func (s *simulation) step(action, result string) {
	s.timeline = append(s.timeline, TimelineEntry{
		Timestamp: time.Now(),
		Action:    action,
		Result:    result,
	})
}

func (s *simulation) complete(success bool) bool {
	if success {
		s.step(ActionRaidComplete, resultControlsFailed)
	} else {
		s.step(ActionRaidComplete, resultControlsHeld)
	}
	return success
}

// VectorFunc is one deterministic decision table over a snapshot and a
// caller-supplied intensity (0-10). It returns whether the simulated
// attack succeeded.
type VectorFunc func(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool

// vectorSpec pairs a vector implementation with its intrinsic severity,
// used for approval-gate comparison and worst-case labelling.
type vectorSpec struct {
	severity types.Severity
	run      VectorFunc
}

// builtinVectors are the decision tables every engine ships with.
// Plugin manifests can widen blast-radius metadata but simulation logic
// stays in-process and deterministic.
var builtinVectors = map[string]vectorSpec{
	"mfa-bypass":       {types.SeverityCritical, runMFABypass},
	"password-spray":   {types.SeverityHigh, runPasswordSpray},
	"token-replay":     {types.SeverityHigh, runTokenReplay},
	"public-access":    {types.SeverityCritical, runPublicAccess},
	"session-fixation": {types.SeverityMedium, runSessionFixation},
}

// manifestVector adapts a manifest-declared attack vector into a runnable
// spec. Manifests contribute blast-radius metadata only (severity,
// intensity bounds, required permissions); the simulation stays in-process
// and deterministic. The declared range fixes the effort bar: the attack is
// assumed to succeed only past the range's midpoint, falling back to the
// shared optional-control threshold when no range is declared.
func manifestVector(providerID string, v plugin.AttackVector) vectorSpec {
	threshold := optionalIntensityThreshold
	if v.Intensity != nil {
		threshold = (v.Intensity.Min + v.Intensity.Max) / 2
	}

	run := func(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
		s.step(ActionCheckProvider, "MANIFEST_VECTOR")
		if len(v.RequiredPermissions) > 0 {
			s.finding("vector %s requires permissions: %s",
				v.ID, strings.Join(v.RequiredPermissions, ", "))
		}
		if intensity > threshold {
			s.finding("provider %s assumes %s succeeds past effort threshold %d at intensity %d",
				providerID, v.ID, threshold, intensity)
			return s.complete(true)
		}
		s.finding("%s held below effort threshold %d at intensity %d", v.ID, threshold, intensity)
		return s.complete(false)
	}

	return vectorSpec{severity: v.Severity, run: run}
}

// runMFABypass: a fully disabled second factor is an automatic success; an
// optional factor succeeds only past the fixed effort threshold; an
// enforced factor always holds.
func runMFABypass(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
	raw, found := snapshot.Resolve("mfaConfiguration")
	mode := strings.ToUpper(fmt.Sprintf("%v", raw))

	switch {
	case !found, mode == "OFF", mode == "NONE", mode == "DISABLED":
		s.step(ActionCheckMFA, "MFA_DISABLED")
		s.finding("second factor is disabled; credential compromise grants full access")
		return s.complete(true)
	case mode == "OPTIONAL":
		s.step(ActionCheckMFA, "MFA_OPTIONAL")
		if intensity > optionalIntensityThreshold {
			s.finding("optional MFA assumed bypassed at intensity %d: unenrolled accounts remain exposed", intensity)
			return s.complete(true)
		}
		s.finding("optional MFA held at intensity %d", intensity)
		return s.complete(false)
	default:
		s.step(ActionCheckMFA, "MFA_ENFORCED")
		s.finding("MFA is enforced (%s); bypass attempt failed", mode)
		return s.complete(false)
	}
}

// runPasswordSpray succeeds when the password policy leaves room for
// common-password guessing: short minimums or missing character classes.
func runPasswordSpray(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
	minLen, _ := snapshot.Resolve("passwordPolicy.minimumLength")
	length, ok := toInt(minLen)

	if !ok || length < 8 {
		s.step(ActionCheckPassword, "POLICY_WEAK")
		s.finding("password minimum length %v permits trivial spraying", minLen)
		return s.complete(true)
	}

	requireSymbols, _ := snapshot.Resolve("passwordPolicy.requireSymbols")
	requireNumbers, _ := snapshot.Resolve("passwordPolicy.requireNumbers")
	weakClasses := requireSymbols != true && requireNumbers != true

	if length < 12 && weakClasses {
		s.step(ActionCheckPassword, "POLICY_MARGINAL")
		if intensity > optionalIntensityThreshold {
			s.finding("marginal policy (length %d, no character classes) falls to a sustained spray at intensity %d", length, intensity)
			return s.complete(true)
		}
		s.finding("marginal policy held at intensity %d", intensity)
		return s.complete(false)
	}

	s.step(ActionCheckPassword, "POLICY_STRONG")
	s.finding("password policy (length %d) resists spraying", length)
	return s.complete(false)
}

// runTokenReplay succeeds when token lifetimes are long enough that a
// captured token stays usable.
func runTokenReplay(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
	raw, found := snapshot.Resolve("tokenValidityHours")
	hours, ok := toInt(raw)

	if !found || !ok {
		s.step(ActionCheckTokens, "VALIDITY_UNKNOWN")
		s.finding("token validity not configured; replay window unbounded")
		return s.complete(true)
	}

	switch {
	case hours > 24:
		s.step(ActionCheckTokens, "VALIDITY_EXCESSIVE")
		s.finding("tokens remain valid for %d hours; captured tokens are replayable", hours)
		return s.complete(true)
	case hours > 1 && intensity > optionalIntensityThreshold:
		s.step(ActionCheckTokens, "VALIDITY_MODERATE")
		s.finding("a %d-hour validity window is exploitable by a fast attacker at intensity %d", hours, intensity)
		return s.complete(true)
	default:
		s.step(ActionCheckTokens, "VALIDITY_TIGHT")
		s.finding("token validity of %d hours closes the replay window", hours)
		return s.complete(false)
	}
}

// runPublicAccess succeeds when a storage target is exposed to anonymous
// reads.
func runPublicAccess(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
	blocked, found := snapshot.Resolve("publicAccessBlock.blockPublicAcls")
	acl, _ := snapshot.Resolve("acl")

	if found && blocked == true {
		s.step(ActionCheckAccess, "ACCESS_BLOCKED")
		s.finding("public access block is enabled; anonymous reads rejected")
		return s.complete(false)
	}

	aclValue := strings.ToLower(fmt.Sprintf("%v", acl))
	if strings.Contains(aclValue, "public") {
		s.step(ActionCheckAccess, "ACL_PUBLIC")
		s.finding("ACL %q exposes the target to anonymous reads", aclValue)
		return s.complete(true)
	}

	s.step(ActionCheckAccess, "ACCESS_UNVERIFIED")
	if intensity > optionalIntensityThreshold {
		s.finding("no public access block and no explicit ACL; enumeration at intensity %d assumed to find an exposed path", intensity)
		return s.complete(true)
	}
	s.finding("no exposed path found at intensity %d", intensity)
	return s.complete(false)
}

// runSessionFixation succeeds when sessions survive authentication events.
func runSessionFixation(s *simulation, snapshot types.ResourceSnapshot, intensity int) bool {
	rotate, found := snapshot.Resolve("sessionConfig.rotateOnLogin")

	if found && rotate == true {
		s.step("CHECK_SESSION_ROTATION", "ROTATION_ENABLED")
		s.finding("sessions rotate on login; fixation attempt failed")
		return s.complete(false)
	}

	s.step("CHECK_SESSION_ROTATION", "ROTATION_MISSING")
	s.finding("session identifiers survive login; fixation possible")
	return s.complete(intensity > 2)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
