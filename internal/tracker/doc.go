// Package tracker follows the console's crawl tasks.
//
// Crawl jobs come and go on the console, and each one streams its
// progress on its own endpoint. The tracker polls the task list over
// REST, subscribes to the progress stream of every pending or running
// task, drops subscriptions when tasks finish or disappear, and merges
// all progress updates onto a single channel.
package tracker
