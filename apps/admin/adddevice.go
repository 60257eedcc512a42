package main

import (
	"context"
	"fmt"

	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
)

func (cli *commandLine) addDevice(school, name, secret string) error {
	ctx := context.Background()

	dev, err := cli.devSvc.Register(ctx, device.NewDevice{
		SchoolID: school,
		Name:     name,
		Secret:   secret,
	})
	if err != nil {
		return err
	}

	if _, err := cli.auditSvc.Log(ctx, audit.Entry{
		SchoolID:   dev.SchoolID,
		ActorID:    cliActorID,
		Action:     audit.ActionDeviceRegistered,
		Category:   audit.CategorySecurity,
		EntityType: "device",
		EntityID:   dev.ID,
		Details:    fmt.Sprintf("device %q registered", dev.Name),
	}); err != nil {
		return err
	}

	fmt.Printf("device registered: %s\n", dev.ID)
	return nil
}
