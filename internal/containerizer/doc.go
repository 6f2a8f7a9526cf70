// Package containerizer drives the container engine for compose-based
// dependencies.
//
// DockerRuntime shells out to the docker CLI. Every dependency is one service
// of a compose file, started in the compose project named after the service
// that declares it:
//
//	docker compose -p <project> -f <repo>/devservices/config.yml up -d <service>
//
// Stop never removes containers, so volumes survive until Purge, which removes
// containers, volumes and networks labelled orchestrator=devservices.
//
// # Testing
//
// Commands are created through execCommandContext so tests can replace it
// with the helper-process pattern.
package containerizer
