// Package supervisor runs local programs declared in a repository's
// devservices/programs.conf under a supervisord daemon.
//
// Each project gets its own daemon. Manager renders
// <dir>/<project>.processes.conf from the project's programs with autostart
// disabled, adds the socket, pidfile and rpcinterface sections supervisord
// needs, and then drives it through supervisorctl.
//
// A running program is identified by the handle "<project>:<program>".
package supervisor
