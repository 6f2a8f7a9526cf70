// Package config loads the declarative description of a service and the
// tool's own settings.
//
// A service is a repository containing devservices/config.yml. The file is a
// docker compose file that additionally carries an x-sentry-service-config
// block:
//
//	x-sentry-service-config:
//	  version: 0.1
//	  service_name: example
//	  dependencies:
//	    redis:
//	      description: Shared redis
//	    snuba:
//	      description: Snuba
//	      remote:
//	        repo_name: snuba
//	        branch: master
//	        repo_link: https://github.com/getsentry/snuba.git
//	        mode: containerized
//	  modes:
//	    default: [redis, snuba]
//
// Dependencies without a remote block are compose services of the same file,
// unless their name matches a [program:x] section of devservices/programs.conf
// in which case they are supervisor programs.
//
// Settings live in ~/.config/devservices/config.yaml and can be overridden
// with DEVSERVICES_* environment variables.
package config
