// Package antispam holds the lexical spam heuristics and the per-user trust
// model. Everything here is pure computation: no I/O, no hidden globals. The
// lexicons are compiled once at startup and injected wherever classification
// happens.
package antispam

import (
	"regexp"
	"strings"
)

// RiskLevel is the outcome of classifying one text signal.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	}
	return "unknown"
}

// TrustDelta maps a risk level to the trust-state contribution of one signal.
// High risk is an immediate confirmed-spam score; medium is half the
// threshold; low is the baseline assigned to any unrecognized text.
func (r RiskLevel) TrustDelta() TrustState {
	switch r {
	case RiskNone:
		return NewSuspect(0)
	case RiskMedium:
		return NewSuspect(scoreMediumRisk)
	case RiskHigh:
		return NewSpam()
	default:
		return NewSuspect(scoreUnknownRisk)
	}
}

// Lexicons are the compiled pattern tiers used for classification. Construct
// once with DefaultLexicons and share by reference.
type Lexicons struct {
	// NoRisk short-circuits classification to RiskNone. It matches the
	// group's benign filler phrase and its latin transliterations, guarding
	// against false positives from on-topic chatter.
	NoRisk *regexp.Regexp
	// HighRisk is financial-scam and solicitation vocabulary plus the emoji
	// that go with it. A single match is a confirmed-spam verdict.
	HighRisk *regexp.Regexp
	// MediumRisk is vocabulary common in spam but too ambiguous to act on
	// alone; it contributes half the ban threshold.
	MediumRisk *regexp.Regexp
	// SpamName flags display names typical of spam accounts.
	SpamName *regexp.Regexp
}

func DefaultLexicons() *Lexicons {
	return &Lexicons{
		NoRisk: regexp.MustCompile(`阿|啊|[aA]{3,}|[aA][hH]+`),
		HighRisk: regexp.MustCompile(
			`(\d|黑|搬|送|)(U|u)|开户|(会|會)(员|員)|收入|接入|免费|完整版|` +
				`兼职|专职|咨询|日结|小白|钱|赚|支付|风险|主页|介绍|TRX|散户|` +
				`母狗|轮流|内射|\d\d岁|学妹|初中|高中|大学|金主|爸爸|老公|白眼|` +
				`团队|专线|代理|合作|保底|日入|商家|红包|盘口|急需|吋|侑|莳|玖|` +
				`(预|預)(付|服)|搬砖|玳|代付|点位|(滴|嘀)(窝|我)|群演|助手|` +
				`做工|招人|捡漏|项目|视频|` +
				`💵|💯|🧧|📣|➡️|⬅️|👉|👈`),
		MediumRisk: regexp.MustCompile(
			`\d(W|w|K|k)|千|万|月|天|年|最|搞|做|操作|进群|做事|事情|了解|` +
				`打字|联系|[1-5]00|押|抢|领|招|美丽|冲|来|兄弟|爽|` +
				`❤️|✈️|🤝|😍`),
		SpamName: regexp.MustCompile(`🔥|看(主|竹)页|会(员|員)|赚钱|达利|^dali|来(了|咯)|[\x{206a}-\x{206f}]`),
	}
}

// ClassifyText classifies one text signal. The no-risk override wins over
// everything; otherwise tiers are checked from high risk down, and text
// matching nothing gets the low-risk baseline (untracked text is mildly
// suspicious by default).
func (l *Lexicons) ClassifyText(text string) RiskLevel {
	switch {
	case l.NoRisk.MatchString(text):
		return RiskNone
	case l.HighRisk.MatchString(text):
		return RiskHigh
	case l.MediumRisk.MatchString(text):
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyDisplayName reports whether a display name looks like a spam
// account. Names carrying a vertical-bar separator are exempt: that style is
// used by legitimate members for decorative handles, and the false-positive
// cost of banning on join is high.
func (l *Lexicons) ClassifyDisplayName(name string) bool {
	if strings.ContainsAny(name, "|｜") {
		return false
	}
	return l.SpamName.MatchString(name)
}
