// Command schedulerd is the process entry point: it loads configuration,
// wires the Registry/Disks clients into the Scheduler Core, connects the
// Framework Driver to the mesos master, starts the Admission API, and
// blocks until a shutdown signal or an unrecoverable driver error.
//
// Grounded on original_source/wsgi.py's entry-point/logging wiring and
// original_source/app/mesos_framework/framework.py's MesosFramework
// construct-scheduler / construct-driver / start-driver sequence,
// adapted into a single main() instead of a process-wide singleton
// (spec.md §9 "no global mutable module state").
package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	mesossched "github.com/mesos/mesos-go/scheduler"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bigdatacesga/scheduler/internal/api"
	"github.com/bigdatacesga/scheduler/internal/disks"
	"github.com/bigdatacesga/scheduler/internal/framework"
	"github.com/bigdatacesga/scheduler/internal/registry"
	internalscheduler "github.com/bigdatacesga/scheduler/internal/scheduler"
)

func main() {
	os.Exit(run())
}

// run wires the process and blocks until shutdown, returning the exit
// code of spec.md §6: 0 graceful stop, 1 driver aborted, 2 config error.
func run() int {
	pflag.String("mesos-master", "", "mesos master host:port (MESOS_MASTER)")
	pflag.Bool("mesos-authenticate", false, "authenticate with the mesos master (MESOS_AUTHENTICATE)")
	pflag.String("mesos-principal", "", "framework principal (MESOS_PRINCIPAL)")
	pflag.String("mesos-secret", "", "framework secret (MESOS_SECRET)")
	pflag.String("registry-endpoint", "consul.service.int.cesga.es:8500", "registry endpoint (REGISTRY_ENDPOINT)")
	pflag.String("disks-endpoint", "http://disks.service.int.cesga.es:5000/resources/disks/v1", "disks service endpoint (DISKS_ENDPOINT)")
	pflag.String("framework-name", "BigDataServices", "mesos framework name (FRAMEWORK_NAME)")
	pflag.String("executor-command", "/root/executor.py", "executor launch command (EXECUTOR_COMMAND)")
	pflag.String("http-addr", ":8080", "admission API listen address")
	pflag.String("http-prefix", "/scheduler/v1", "admission API path prefix")
	pflag.String("log-level", "info", "log level (LOG_LEVEL); read into the config but not applied to glog verbosity")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Errorf("config: failed to bind flags: %v", err)
		return 2
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetConfigName("scheduler")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/scheduler")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Errorf("config: failed to read config file: %v", err)
			return 2
		}
	}

	masterAddr := viper.GetString("mesos-master")
	if masterAddr == "" {
		log.Error("config: mesos-master (MESOS_MASTER) is required")
		return 2
	}

	reg, err := registry.Connect(viper.GetString("registry-endpoint"))
	if err != nil {
		log.Errorf("config: failed to connect to registry: %v", err)
		return 2
	}
	diskClient := disks.New(viper.GetString("disks-endpoint"))

	core := internalscheduler.New(reg, diskClient)
	driver := framework.New(core, reg, viper.GetString("executor-command"))

	frameworkInfo := &mesos.FrameworkInfo{
		User: proto.String(""),
		Name: proto.String(viper.GetString("framework-name")),
	}
	if id, ok, err := driver.FrameworkID(); err != nil {
		log.Warningf("config: failed to read persisted framework id: %v", err)
	} else if ok {
		frameworkInfo.Id = &mesos.FrameworkID{Value: proto.String(id)}
	}

	driverConfig := mesossched.DriverConfig{
		Scheduler: driver,
		Framework: frameworkInfo,
		Master:    masterAddr,
	}
	if viper.GetBool("mesos-authenticate") {
		frameworkInfo.Principal = proto.String(viper.GetString("mesos-principal"))
		driverConfig.Credential = &mesos.Credential{
			Principal: proto.String(viper.GetString("mesos-principal")),
			Secret:    []byte(viper.GetString("mesos-secret")),
		}
	}

	mesosDriver, err := mesossched.NewMesosSchedulerDriver(driverConfig)
	if err != nil {
		log.Errorf("driver: failed to construct mesos scheduler driver: %v", err)
		return 2
	}

	admission := api.New(core, reg)
	httpServer := &http.Server{
		Addr:    viper.GetString("http-addr"),
		Handler: admission.Router(viper.GetString("http-prefix")),
	}
	go func() {
		log.Infof("api: admission API listening on %s%s", httpServer.Addr, viper.GetString("http-prefix"))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("api: admission API stopped: %v", err)
		}
	}()

	driverDone := make(chan struct{})
	var driverStatus mesos.Status
	go func() {
		status, runErr := mesosDriver.Run()
		if runErr != nil {
			log.Errorf("driver: run failed: %v", runErr)
		}
		driverStatus = status
		close(driverDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown: signal received, stopping driver")
		mesosDriver.Stop(false)
		<-driverDone
		_ = httpServer.Close()
		return 0
	case <-driverDone:
		log.Errorf("driver: exited unexpectedly with status %v", driverStatus)
		_ = httpServer.Close()
		return 1
	case errMsg := <-driver.Fatal():
		// spec.md §7.4: a DriverError initiates graceful shutdown and the
		// admission API starts refusing new submissions.
		log.Errorf("shutdown: unrecoverable driver error, stopping: %s", errMsg)
		admission.Refuse()
		mesosDriver.Stop(false)
		<-driverDone
		_ = httpServer.Close()
		return 1
	}
}
