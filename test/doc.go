/*
Package test provides an in-process DNS server answering from a static zone, so
that tests never need to talk to real name servers.
*/
package test
