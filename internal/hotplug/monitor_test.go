package hotplug

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestNewRequiresVendors(t *testing.T) {
	if m := New(nil, nil, nil); m != nil {
		t.Fatal("expected nil monitor without vendors")
	}
	if m := New([]string{" ", ""}, nil, nil); m != nil {
		t.Fatal("expected nil monitor for blank vendors")
	}
	m := New([]string{"8086", " 8086 "}, nil, nil)
	if m == nil || len(m.vendors) != 1 {
		t.Fatalf("expected one vendor, got %+v", m)
	}
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor must not report running")
	}
}

func TestStopBeforeStart(t *testing.T) {
	m := New([]string{"8086"}, nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("expected monitor to be stopped")
	}
}

func TestMatcherSelectsUSBDevices(t *testing.T) {
	matcher, err := buildMatcher()
	if err != nil {
		t.Fatalf("buildMatcher: %v", err)
	}
	usb := map[string]string{"SUBSYSTEM": "usb", "DEVTYPE": "usb_device"}
	if !matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: usb}) {
		t.Fatal("expected usb add to match")
	}
	if !matcher.Evaluate(netlink.UEvent{Action: netlink.REMOVE, Env: usb}) {
		t.Fatal("expected usb remove to match")
	}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.CHANGE, Env: usb}) {
		t.Fatal("expected usb change to be ignored")
	}
	iface := map[string]string{"SUBSYSTEM": "usb", "DEVTYPE": "usb_interface"}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: iface}) {
		t.Fatal("expected usb interface to be ignored")
	}
}

func TestHandleEventFiltersVendor(t *testing.T) {
	var got []Event
	m := New([]string{"8086"}, func(_ context.Context, ev Event) { got = append(got, ev) }, nil)

	m.handleEvent(context.Background(), netlink.UEvent{
		Action: netlink.REMOVE,
		KObj:   "/devices/pci0000:00/0000:00:14.0/usb2/2-1",
		Env: map[string]string{
			"ID_VENDOR_ID": "8086",
			"ID_MODEL_ID":  "0b07",
			"ID_MODEL":     "Intel_RealSense_D435",
		},
	})
	m.handleEvent(context.Background(), netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"ID_VENDOR_ID": "046d", "ID_MODEL_ID": "c52b"},
	})

	if len(got) != 1 {
		t.Fatalf("expected one handled event, got %d", len(got))
	}
	ev := got[0]
	if ev.Action != ActionRemove || ev.Product != "0b07" || ev.Model != "Intel_RealSense_D435" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.DevPath != "/devices/pci0000:00/0000:00:14.0/usb2/2-1" {
		t.Fatalf("expected devpath from kobj, got %q", ev.DevPath)
	}
}

func TestParseEventFallsBackToProduct(t *testing.T) {
	ev, ok := parseEvent(netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"PRODUCT": "8086/b07/5013", "DEVPATH": "/devices/usb2/2-1"},
	})
	if !ok {
		t.Fatal("expected event to parse")
	}
	if ev.Vendor != "8086" || ev.Product != "0b07" {
		t.Fatalf("unexpected ids %q/%q", ev.Vendor, ev.Product)
	}

	if _, ok := parseEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}}); ok {
		t.Fatal("expected event without ids to be rejected")
	}
	if _, ok := parseEvent(netlink.UEvent{Action: netlink.MOVE, Env: map[string]string{"ID_VENDOR_ID": "8086"}}); ok {
		t.Fatal("expected move action to be rejected")
	}
}
