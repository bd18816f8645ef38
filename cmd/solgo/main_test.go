package main

import (
	"reflect"
	"testing"
)

func TestValidateWebPort(t *testing.T) {
	cases := []struct {
		port    int
		wantErr bool
	}{
		{8080, false},
		{1, false},
		{65535, false},
		{0, true},
		{-1, true},
		{65536, true},
	}
	for _, tc := range cases {
		err := validateWebPort(tc.port)
		if (err != nil) != tc.wantErr {
			t.Errorf("validateWebPort(%d) = %v, wantErr=%v", tc.port, err, tc.wantErr)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	name, args, err := splitCommand("systemctl reboot")
	if err != nil {
		t.Fatal(err)
	}
	if name != "systemctl" || !reflect.DeepEqual(args, []string{"reboot"}) {
		t.Errorf("got %q %v", name, args)
	}

	name, args, err = splitCommand("reboot")
	if err != nil {
		t.Fatal(err)
	}
	if name != "reboot" || len(args) != 0 {
		t.Errorf("got %q %v", name, args)
	}

	if _, _, err := splitCommand("   "); err == nil {
		t.Error("expected error for empty command")
	}
}
