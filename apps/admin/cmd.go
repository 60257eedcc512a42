package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
)

var (
	readSecretFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	attSvc   *attendance.Service
	devSvc   *device.Service
	auditSvc *audit.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  setgeofence -school ID -lat LAT -lng LNG -radius METERS - set a school's clock-in zone")
	fmt.Println("  adddevice -school ID -name NAME - register a biometric terminal. The secret will be prompted next.")
	fmt.Println("  enroll -school ID -biometric ID -subject ID - map a biometric template to a subject")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	setGeofenceCmd := flag.NewFlagSet("setgeofence", flag.ExitOnError)
	setGeofenceSchool := setGeofenceCmd.String("school", "", "The school's ID.")
	setGeofenceLat := setGeofenceCmd.Float64("lat", 0, "The fence center's latitude.")
	setGeofenceLng := setGeofenceCmd.Float64("lng", 0, "The fence center's longitude.")
	setGeofenceRadius := setGeofenceCmd.Float64("radius", 0, "The fence radius in meters.")

	addDeviceCmd := flag.NewFlagSet("adddevice", flag.ExitOnError)
	addDeviceSchool := addDeviceCmd.String("school", "", "The school's ID.")
	addDeviceName := addDeviceCmd.String("name", "", "The terminal's display name. The secret will be prompted next.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	enrollSchool := enrollCmd.String("school", "", "The school's ID.")
	enrollBiometric := enrollCmd.String("biometric", "", "The device-local biometric template ID.")
	enrollSubject := enrollCmd.String("subject", "", "The subject's ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "setgeofence":
		if err := setGeofenceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setGeofenceSchool == "" || *setGeofenceRadius == 0 {
			setGeofenceCmd.Usage()
			return errHelp
		}
		return cli.setGeofence(*setGeofenceSchool, *setGeofenceLat, *setGeofenceLng, *setGeofenceRadius)
	case "adddevice":
		if err := addDeviceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addDeviceSchool == "" || *addDeviceName == "" {
			addDeviceCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter device secret:")
		secret, err := readSecretFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(secret) == 0 {
			addDeviceCmd.Usage()
			return errHelp
		}
		return cli.addDevice(*addDeviceSchool, *addDeviceName, string(secret))
	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollSchool == "" || *enrollBiometric == "" || *enrollSubject == "" {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.enroll(*enrollSchool, *enrollBiometric, *enrollSubject)
	default:
		cli.printUsage()
		return errHelp
	}
}
