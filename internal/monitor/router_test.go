package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"solmon"
)

const (
	acctFull     = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	counterparty = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
)

func sendEvent() solmon.Event {
	return solmon.Event{
		Signature:    "sig-99",
		Account:      acctFull,
		Lamports:     -250_000_000,
		Kind:         solmon.KindSend,
		BlockTime:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Counterparty: counterparty,
	}
}

func receiveEvent() solmon.Event {
	return solmon.Event{
		Signature: "sig-42",
		Account:   acctFull,
		Lamports:  500_000_000,
		Kind:      solmon.KindReceive,
		BlockTime: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func adminWatch(credential string) solmon.Watch {
	return solmon.Watch{Subscriber: adminID, Account: acctFull, Credential: credential, Active: true}
}

func userWatch(credential string) solmon.Watch {
	return solmon.Watch{Subscriber: userID, Account: acctFull, Credential: credential, Active: true}
}

func TestRouterSharedWalletGoesToChannelAndAdmin(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{adminWatch("s-a"), userWatch("s-u")})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.channelCount() != 1 || sender.adminCount() != 1 {
		t.Fatalf("channel=%d admin=%d, want 1/1", sender.channelCount(), sender.adminCount())
	}
	if !strings.HasSuffix(sender.lastAdmin(), adminSharedTag) {
		t.Error("admin copy missing the shared-watch tag")
	}
	if strings.Contains(sender.lastChannel(), "Admin notice") {
		t.Error("channel copy carries an admin tag")
	}
}

func TestRouterAdminOnlyWalletStaysOutOfChannel(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	if err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{adminWatch("s-a")}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.channelCount() != 0 || sender.adminCount() != 1 {
		t.Fatalf("channel=%d admin=%d, want 0/1", sender.channelCount(), sender.adminCount())
	}
	if !strings.HasSuffix(sender.lastAdmin(), adminOnlyTag) {
		t.Error("admin copy missing the only-you tag")
	}
}

func TestRouterUserWalletGoesToChannelOnly(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	if err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{userWatch("s-u")}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.channelCount() != 1 || sender.adminCount() != 0 {
		t.Fatalf("channel=%d admin=%d, want 1/0", sender.channelCount(), sender.adminCount())
	}
	if strings.Contains(sender.lastChannel(), "Admin notice") {
		t.Error("channel copy carries an admin tag")
	}
}

func TestRouterBodyCarriesEventFields(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())
	ev := sendEvent()

	if err := r.Deliver(context.Background(), ev, []solmon.Watch{userWatch("s-u")}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	body := sender.lastChannel()

	wants := []string{
		"💰 New transaction\\!",
		"📤 Type: send",
		"🏦 Wallet: " + escapeMarkdownV2(solmon.TruncateAddress(acctFull)),
		"💵 Amount: " + escapeMarkdownV2(solmon.FormatSOL(ev.Lamports)) + " SOL",
		"🕒 Block time: " + escapeMarkdownV2("2026-01-15 10:30:00 UTC"),
		"➡️ To: " + escapeMarkdownV2(solmon.TruncateAddress(counterparty)),
		"🔐 Private key:\n```\nopened-s-u\n```",
		"📋 Full address:\n```\n" + acctFull + "\n```",
		"➡️ Counterparty:\n```\n" + counterparty + "\n```",
		"🔗 Signature:\n```\nsig-99\n```",
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\nbody:\n%s", want, body)
		}
	}
}

func TestRouterReceiveOmitsCounterpartyLines(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	if err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{userWatch("s-u")}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	body := sender.lastChannel()
	if strings.Contains(body, "➡️") {
		t.Errorf("receive body carries counterparty lines:\n%s", body)
	}
	if !strings.Contains(body, "📥 Type: receive") {
		t.Errorf("receive body missing kind line:\n%s", body)
	}
}

func TestRouterPrefersAdminCredential(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	watchers := []solmon.Watch{userWatch("s-u"), adminWatch("s-a")}
	if err := r.Deliver(context.Background(), receiveEvent(), watchers); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	body := sender.lastChannel()
	if !strings.Contains(body, "opened-s-a") {
		t.Error("body does not use the admin's key")
	}
	if strings.Contains(body, "opened-s-u") {
		t.Error("body leaked a non-admin key alongside the admin's")
	}
}

func TestRouterOmitsKeySectionWhenUnrecoverable(t *testing.T) {
	sender := &fakeSender{}
	r := NewRouter(sender, fakeOpener{err: errors.New("bad seal")}, adminID, discardLog())

	if err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{userWatch("s-u")}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if strings.Contains(sender.lastChannel(), "Private key") {
		t.Error("body advertises a key that could not be recovered")
	}
}

func TestRouterPartialFailureStillDeliversRest(t *testing.T) {
	sender := &fakeSender{chanErr: errors.New("channel down")}
	r := NewRouter(sender, fakeOpener{}, adminID, discardLog())

	err := r.Deliver(context.Background(), receiveEvent(), []solmon.Watch{adminWatch("s-a"), userWatch("s-u")})
	if err == nil {
		t.Fatal("Deliver swallowed the channel failure")
	}
	if !strings.Contains(err.Error(), "channel") {
		t.Errorf("error %q does not name the failed destination", err)
	}
	if sender.adminCount() != 1 {
		t.Errorf("admin deliveries = %d after channel failure, want 1", sender.adminCount())
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"abc123", "abc123"},
		{"+0.5", "\\+0\\.5"},
		{"-1.25", "\\-1\\.25"},
		{"a_b*c", "a\\_b\\*c"},
		{"[x](y)", "\\[x\\]\\(y\\)"},
		{"a\\b", "a\\\\b"},
		{"2026-01-15 10:30:00 UTC", "2026\\-01\\-15 10:30:00 UTC"},
	}
	for _, tc := range cases {
		if got := escapeMarkdownV2(tc.in); got != tc.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
