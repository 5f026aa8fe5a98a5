package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           mmdeploy status API
// @version         1.0
// @description     Deployment status, codebase registry, and artifact inventory.
//
// @contact.name   mmdeploy maintainers
// @contact.url    https://github.com/tongda/mmdeploy
//
// @license.name   Apache-2.0
// @license.url    https://www.apache.org/licenses/LICENSE-2.0
//
// @BasePath  /
//
// @schemes http
