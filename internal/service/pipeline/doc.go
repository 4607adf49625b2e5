// Package pipeline runs one deployment end to end: ensure a session, build
// the package, submit it and poll the job until it finishes.
//
// Every failure stops the run and comes back as *deploy.StageError naming the
// stage; errors.As still reaches the underlying typed error. Nothing is
// retried here.
package pipeline
