// Package permission confines tool operations to the session working
// directory and guards protected paths.
//
// # Checks
//
// A Validator answers one question per target path: may an operation of a
// given side-effect class touch this path from a session rooted at workDir?
//
//	v, err := permission.FromConfig(cfg.Permission)
//	path, err := v.Authorize(session.Directory, "src/main.go", types.Mutating)
//
// Every operation is confined to the session root. Relative targets are
// joined to the root, absolute targets are kept, and both are cleaned before
// comparison, so "../../etc/passwd" and "/etc/passwd" are denied alike with
// ReasonOutside. Symlinks on the existing part of the path are evaluated, so
// a link inside the root that points elsewhere is also denied.
//
// Mutating operations are further checked against the denylist
// (ReasonProtected) and for write access to the target, or to its nearest
// existing parent when the target does not exist yet (ReasonNotWritable).
//
// # Denylist
//
// Patterns use doublestar syntax and match the slash-separated path relative
// to the session root. DefaultDenylist covers .git, .hg, .svn and .env.
// Configuration may extend it or, with replaceDefaults, replace it:
//
//	{
//	  "permission": {
//	    "denylist": ["secrets/**", "*.pem"]
//	  }
//	}
package permission
