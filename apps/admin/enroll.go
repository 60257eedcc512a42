package main

import (
	"context"
	"fmt"

	"github.com/trezcool/hudhurio/core/device"
)

func (cli *commandLine) enroll(school, biometric, subject string) error {
	enr, err := cli.devSvc.Enroll(context.Background(), device.NewEnrollment{
		SchoolID:    school,
		BiometricID: biometric,
		SubjectID:   subject,
	})
	if err != nil {
		return err
	}
	fmt.Printf("enrollment created: %s (biometric %s -> subject %s)\n", enr.ID, enr.BiometricID, enr.SubjectID)
	return nil
}
